package journal

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// writeVectorSidecar stores a vector as packed little-endian float32 values
// in its own file and returns the path callers record as vector_ref.
func (j *Journal) writeVectorSidecar(id string, vector []float32) (string, error) {
	if err := os.MkdirAll(j.cfg.BinaryDir, 0o700); err != nil {
		return "", fmt.Errorf("create binary directory: %w", err)
	}

	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}

	path := filepath.Join(j.cfg.BinaryDir, id+".vec")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return "", fmt.Errorf("write vector file: %w", err)
	}
	return path, nil
}

// ReadVectorSidecar loads a packed float32 vector written by the journal's
// binary embedding mode.
func ReadVectorSidecar(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector file %q has unaligned length %d", path, len(data))
	}

	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vector, nil
}
