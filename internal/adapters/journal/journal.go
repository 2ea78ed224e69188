// Package journal is the durable append log for chunk and embedding
// records. Writes are buffered for throughput and flushed through an
// atomic-replace path with a backup taken first, so the target files are
// valid line-delimited JSON at every observable instant.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
	"github.com/google/uuid"
)

const (
	DefaultBufferMax     = 1000
	DefaultMaxBatchSize  = 1000
	DefaultFlushInterval = 5 * time.Second

	backupSeparator = ".bak-"
)

type Config struct {
	ChunksPath     string
	EmbeddingsPath string
	// ScratchDir holds in-progress temp files. Defaults to the target's
	// directory; it must be on the same filesystem for rename to be atomic.
	ScratchDir string
	// BinaryDir and BinaryVectors enable the packed-float32 sidecar mode
	// for embedding vectors.
	BinaryDir     string
	BinaryVectors bool
	// BufferMax triggers an immediate flush when a buffer reaches it.
	BufferMax int
	// MaxBatchSize caps how many records one flush pass writes per file;
	// the remainder stays buffered for the next tick.
	MaxBatchSize  int
	FlushInterval time.Duration
}

// Stats counts journal activity since startup.
type Stats struct {
	Flushes            int
	ChunksBuffered     int
	EmbeddingsBuffered int
	ChunksWritten      int
	EmbeddingsWritten  int
	RecordsDropped     int
	Recoveries         int
}

// Journal buffers records in memory and flushes them on a timer, on buffer
// pressure, and on Close. A single in-flight guard drops overlapping flush
// requests; the next tick covers whatever was skipped.
type Journal struct {
	cfg   Config
	clock ports.Clock

	mu     sync.Mutex
	chunks []domain.ChunkRecord
	embeds []domain.EmbeddingRecord
	stats  Stats
	closed bool

	flushing atomic.Bool
	ticker   *time.Ticker
	done     chan struct{}
}

func New(cfg Config, clock ports.Clock) (*Journal, error) {
	if cfg.ChunksPath == "" || cfg.EmbeddingsPath == "" {
		return nil, errors.New("journal requires chunks and embeddings paths")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.BufferMax <= 0 {
		cfg.BufferMax = DefaultBufferMax
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BinaryVectors && cfg.BinaryDir == "" {
		return nil, errors.New("binary vector mode requires a binary directory")
	}

	j := &Journal{
		cfg:    cfg,
		clock:  clock,
		done:   make(chan struct{}),
		ticker: time.NewTicker(cfg.FlushInterval),
	}
	go j.flushLoop()
	return j, nil
}

func (j *Journal) flushLoop() {
	for {
		select {
		case <-j.done:
			return
		case <-j.ticker.C:
			if err := j.Flush(); err != nil {
				slog.Error("periodic journal flush failed", "error", err)
			}
		}
	}
}

// AddChunk enqueues one chunk record, assigning id and timestamp if missing.
func (j *Journal) AddChunk(record domain.ChunkRecord) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return domain.ErrJournalClosed
	}
	if record.ChunkID == "" {
		record.ChunkID = uuid.Must(uuid.NewV7()).String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = j.clock.Now()
	}
	j.chunks = append(j.chunks, record)
	full := len(j.chunks) >= j.cfg.BufferMax
	j.mu.Unlock()

	if full {
		return j.Flush()
	}
	return nil
}

// AddEmbedding enqueues one embedding record.
func (j *Journal) AddEmbedding(record domain.EmbeddingRecord) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return domain.ErrJournalClosed
	}
	if record.ID == "" {
		record.ID = uuid.Must(uuid.NewV7()).String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = j.clock.Now()
	}
	j.embeds = append(j.embeds, record)
	full := len(j.embeds) >= j.cfg.BufferMax
	j.mu.Unlock()

	if full {
		return j.Flush()
	}
	return nil
}

// AddBatch enqueues chunks and embeddings together, flushing once if either
// buffer fills.
func (j *Journal) AddBatch(chunks []domain.ChunkRecord, embeds []domain.EmbeddingRecord) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return domain.ErrJournalClosed
	}
	now := j.clock.Now()
	for _, c := range chunks {
		if c.ChunkID == "" {
			c.ChunkID = uuid.Must(uuid.NewV7()).String()
		}
		if c.Timestamp.IsZero() {
			c.Timestamp = now
		}
		j.chunks = append(j.chunks, c)
	}
	for _, e := range embeds {
		if e.ID == "" {
			e.ID = uuid.Must(uuid.NewV7()).String()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		j.embeds = append(j.embeds, e)
	}
	full := len(j.chunks) >= j.cfg.BufferMax || len(j.embeds) >= j.cfg.BufferMax
	j.mu.Unlock()

	if full {
		return j.Flush()
	}
	return nil
}

// Flush drains up to MaxBatchSize records per buffer to disk. A flush that
// arrives while another is in progress is dropped; buffered records stay put
// until the next tick.
func (j *Journal) Flush() error {
	if !j.flushing.CompareAndSwap(false, true) {
		slog.Debug("flush already in progress, skipping")
		return nil
	}
	defer j.flushing.Store(false)

	j.mu.Lock()
	chunks := takeBatch(&j.chunks, j.cfg.MaxBatchSize)
	embeds := takeBatch(&j.embeds, j.cfg.MaxBatchSize)
	j.mu.Unlock()

	if len(chunks) == 0 && len(embeds) == 0 {
		return nil
	}

	chunkLines, dropped := encodeChunks(chunks)
	embedLines, droppedEmbeds := j.encodeEmbeddings(embeds)
	dropped += droppedEmbeds

	var flushErr error
	written := 0
	if len(chunkLines) > 0 {
		if err := j.appendLines(j.cfg.ChunksPath, chunkLines); err != nil {
			flushErr = errors.Join(flushErr, fmt.Errorf("flush chunks: %w", err))
		} else {
			written += len(chunkLines)
		}
	}
	embedsWritten := 0
	if len(embedLines) > 0 {
		if err := j.appendLines(j.cfg.EmbeddingsPath, embedLines); err != nil {
			flushErr = errors.Join(flushErr, fmt.Errorf("flush embeddings: %w", err))
		} else {
			embedsWritten = len(embedLines)
		}
	}

	j.mu.Lock()
	j.stats.Flushes++
	j.stats.ChunksWritten += written
	j.stats.EmbeddingsWritten += embedsWritten
	j.stats.RecordsDropped += dropped
	j.mu.Unlock()

	return flushErr
}

// Close stops the timer and drains both buffers.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	j.ticker.Stop()
	close(j.done)

	var err error
	for {
		j.mu.Lock()
		remaining := len(j.chunks) + len(j.embeds)
		j.mu.Unlock()
		if remaining == 0 {
			return err
		}
		err = errors.Join(err, j.Flush())
	}
}

// Stats returns a snapshot of journal counters.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	stats := j.stats
	stats.ChunksBuffered = len(j.chunks)
	stats.EmbeddingsBuffered = len(j.embeds)
	return stats
}

// takeBatch swaps out up to max records, leaving the rest buffered in FIFO
// order.
func takeBatch[T any](buffer *[]T, max int) []T {
	buf := *buffer
	if len(buf) == 0 {
		return nil
	}
	n := len(buf)
	if n > max {
		n = max
	}
	batch := make([]T, n)
	copy(batch, buf[:n])
	*buffer = append(buf[:0:0], buf[n:]...)
	return batch
}

func encodeChunks(chunks []domain.ChunkRecord) (lines [][]byte, dropped int) {
	for _, record := range chunks {
		line, err := json.Marshal(record)
		if err != nil {
			slog.Warn("chunk record not serializable, dropped", "id", record.ChunkID, "error", err)
			dropped++
			continue
		}
		lines = append(lines, line)
	}
	return lines, dropped
}

func (j *Journal) encodeEmbeddings(embeds []domain.EmbeddingRecord) (lines [][]byte, dropped int) {
	for _, record := range embeds {
		if j.cfg.BinaryVectors && len(record.Vector) > 0 {
			ref, err := j.writeVectorSidecar(record.ID, record.Vector)
			if err != nil {
				slog.Warn("vector sidecar write failed, keeping inline vector", "id", record.ID, "error", err)
			} else {
				record.VectorRef = ref
				record.Vector = nil
			}
		}
		line, err := json.Marshal(record)
		if err != nil {
			slog.Warn("embedding record not serializable, dropped", "id", record.ID, "error", err)
			dropped++
			continue
		}
		lines = append(lines, line)
	}
	return lines, dropped
}

// appendLines writes (existing content + new lines) into a temp file and
// renames it over the target. The pre-flush backup is removed on success and
// restored on failure.
func (j *Journal) appendLines(target string, lines [][]byte) (err error) {
	newContent := append(bytes.Join(lines, []byte("\n")), '\n')

	existing, readErr := os.ReadFile(target)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return fmt.Errorf("read target: %w", readErr)
	}

	mode := os.FileMode(0o600)
	if info, statErr := os.Stat(target); statErr == nil {
		mode = info.Mode().Perm()
	}

	backupPath := ""
	if len(existing) > 0 {
		backupPath = fmt.Sprintf("%s%s%d", target, backupSeparator, j.clock.Now().UnixNano())
		if backupErr := os.WriteFile(backupPath, existing, mode); backupErr != nil {
			return fmt.Errorf("write backup: %w", backupErr)
		}
	}

	defer func() {
		if err != nil {
			j.recoverFromBackup(target)
			return
		}
		if backupPath != "" {
			_ = os.Remove(backupPath)
		}
	}()

	if err = os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	scratch := j.cfg.ScratchDir
	if scratch == "" {
		scratch = filepath.Dir(target)
	} else if err = os.MkdirAll(scratch, 0o700); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	tempFile, err := os.CreateTemp(scratch, ".journal-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err = tempFile.Write(existing); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if _, err = tempFile.Write(newContent); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	info, err := tempFile.Stat()
	if err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("stat temp file: %w", err)
	}
	if info.Size() < int64(len(newContent)) {
		_ = tempFile.Close()
		return fmt.Errorf("temp file smaller than new content: %d < %d", info.Size(), len(newContent))
	}

	if err = tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tempName, target); err != nil {
		return fmt.Errorf("replace target: %w", err)
	}
	return nil
}

// recoverFromBackup restores the most recent timestamped backup beside the
// target. Missing backups are logged, not fatal.
func (j *Journal) recoverFromBackup(target string) {
	pattern := target + backupSeparator + "*"
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		slog.Warn("no backup available for recovery", "target", target)
		return
	}

	// Nanosecond suffixes sort lexicographically only at equal width, so
	// sort by the numeric-looking suffix explicitly.
	sort.Slice(matches, func(a, b int) bool {
		return suffixOf(matches[a]) < suffixOf(matches[b])
	})
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		slog.Error("backup unreadable, recovery skipped", "backup", latest, "error", err)
		return
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		slog.Error("backup restore failed", "target", target, "error", err)
		return
	}

	j.mu.Lock()
	j.stats.Recoveries++
	j.mu.Unlock()
	slog.Info("restored journal file from backup", "target", target, "backup", latest)
}

func suffixOf(path string) int64 {
	idx := strings.LastIndex(path, backupSeparator)
	if idx < 0 {
		return 0
	}
	var n int64
	_, _ = fmt.Sscanf(path[idx+len(backupSeparator):], "%d", &n)
	return n
}
