package journal

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/continuity/internal/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		ChunksPath:     filepath.Join(dir, "chunks.jsonl"),
		EmbeddingsPath: filepath.Join(dir, "embeddings.jsonl"),
		// Long interval keeps the ticker out of deterministic tests.
		FlushInterval: time.Hour,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestJournalBufferPressureFlush(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.BufferMax = 1000
	cfg.MaxBatchSize = 1000

	j, err := New(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 1200; i++ {
		require.NoError(t, j.AddChunk(domain.ChunkRecord{
			Content: fmt.Sprintf("chunk-%04d", i),
			Source:  "test",
		}))
	}

	// Record 1000 filled the buffer and triggered one full-batch flush; the
	// trailing 200 are still buffered.
	stats := j.Stats()
	assert.Equal(t, 1, stats.Flushes)
	assert.Equal(t, 1000, stats.ChunksWritten)
	assert.Equal(t, 200, stats.ChunksBuffered)

	require.NoError(t, j.Close())

	stats = j.Stats()
	assert.Equal(t, 2, stats.Flushes)
	assert.Equal(t, 1200, stats.ChunksWritten)
	assert.Equal(t, 0, stats.ChunksBuffered)
	assert.Equal(t, 0, stats.RecordsDropped)

	lines := readLines(t, cfg.ChunksPath)
	require.Len(t, lines, 1200)
	for i, line := range lines {
		var rec domain.ChunkRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, fmt.Sprintf("chunk-%04d", i), rec.Content, "records must keep arrival order")
		assert.NotEmpty(t, rec.ChunkID)
		assert.False(t, rec.Timestamp.IsZero())
	}
}

func TestJournalAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	j, err := New(cfg, fixedClock{now: now})
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "hello"}))
	require.NoError(t, j.AddEmbedding(domain.EmbeddingRecord{Vector: []float32{1, 2}}))
	require.NoError(t, j.Flush())

	var chunk domain.ChunkRecord
	require.NoError(t, json.Unmarshal([]byte(readLines(t, cfg.ChunksPath)[0]), &chunk))
	assert.NotEmpty(t, chunk.ChunkID)
	assert.True(t, chunk.Timestamp.Equal(now))

	var embed domain.EmbeddingRecord
	require.NoError(t, json.Unmarshal([]byte(readLines(t, cfg.EmbeddingsPath)[0]), &embed))
	assert.NotEmpty(t, embed.ID)
	assert.Equal(t, []float32{1, 2}, embed.Vector)
}

func TestJournalPreservesExplicitID(t *testing.T) {
	t.Parallel()
	j, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AddChunk(domain.ChunkRecord{ChunkID: "my-id", Content: "x"}))
	require.NoError(t, j.Flush())

	var chunk domain.ChunkRecord
	cfgLines := readLines(t, j.cfg.ChunksPath)
	require.NoError(t, json.Unmarshal([]byte(cfgLines[0]), &chunk))
	assert.Equal(t, "my-id", chunk.ChunkID)
}

func TestJournalAppendsAcrossFlushes(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	j, err := New(cfg, nil)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "first"}))
	require.NoError(t, j.Flush())
	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "second"}))
	require.NoError(t, j.Flush())

	lines := readLines(t, cfg.ChunksPath)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")

	// Successful flushes clean their backups up.
	backups, err := filepath.Glob(cfg.ChunksPath + backupSeparator + "*")
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestJournalClosedRejectsWrites(t *testing.T) {
	t.Parallel()
	j, err := New(testConfig(t), nil)
	require.NoError(t, err)

	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "x"}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "closing twice is fine")

	assert.ErrorIs(t, j.AddChunk(domain.ChunkRecord{Content: "y"}), domain.ErrJournalClosed)
	assert.ErrorIs(t, j.AddEmbedding(domain.EmbeddingRecord{}), domain.ErrJournalClosed)
	assert.ErrorIs(t, j.AddBatch(nil, nil), domain.ErrJournalClosed)

	lines := readLines(t, j.cfg.ChunksPath)
	assert.Len(t, lines, 1, "close drained the buffered record")
}

func TestJournalAddBatch(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	j, err := New(cfg, nil)
	require.NoError(t, err)
	defer j.Close()

	chunks := []domain.ChunkRecord{{Content: "a"}, {Content: "b"}}
	embeds := []domain.EmbeddingRecord{{Vector: []float32{0.5}}}
	require.NoError(t, j.AddBatch(chunks, embeds))
	require.NoError(t, j.Flush())

	assert.Len(t, readLines(t, cfg.ChunksPath), 2)
	assert.Len(t, readLines(t, cfg.EmbeddingsPath), 1)
}

func TestJournalDropsUnserializableRecords(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	j, err := New(cfg, nil)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "good"}))
	require.NoError(t, j.AddChunk(domain.ChunkRecord{
		Content:  "bad",
		Metadata: map[string]any{"inf": math.Inf(1)},
	}))
	require.NoError(t, j.Flush())

	lines := readLines(t, cfg.ChunksPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "good")
	assert.Equal(t, 1, j.Stats().RecordsDropped)
}

func TestJournalBinaryVectorSidecar(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.BinaryVectors = true
	cfg.BinaryDir = filepath.Join(t.TempDir(), "vectors")

	j, err := New(cfg, nil)
	require.NoError(t, err)
	defer j.Close()

	vector := []float32{0.25, -1.5, 3.125}
	require.NoError(t, j.AddEmbedding(domain.EmbeddingRecord{ID: "e1", Vector: vector}))
	require.NoError(t, j.Flush())

	var rec domain.EmbeddingRecord
	require.NoError(t, json.Unmarshal([]byte(readLines(t, cfg.EmbeddingsPath)[0]), &rec))
	assert.Empty(t, rec.Vector, "inline vector replaced by the sidecar reference")
	require.NotEmpty(t, rec.VectorRef)

	got, err := ReadVectorSidecar(rec.VectorRef)
	require.NoError(t, err)
	assert.Equal(t, vector, got)
}

func TestJournalBinaryModeRequiresDirectory(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.BinaryVectors = true

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestJournalRecoversTargetOnFailedFlush(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	j, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, j.AddChunk(domain.ChunkRecord{Content: "durable"}))
	require.NoError(t, j.Close())

	// A scratch path that is a regular file makes the temp-file step fail
	// after the backup was taken.
	badScratch := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.WriteFile(badScratch, []byte("x"), 0o600))
	cfg.FlushInterval = time.Hour
	cfg.ScratchDir = badScratch

	j2, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j2.Close() })
	require.NoError(t, j2.AddChunk(domain.ChunkRecord{Content: "lost"}))
	assert.Error(t, j2.Flush())

	lines := readLines(t, cfg.ChunksPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "durable")
	assert.Equal(t, 1, j2.Stats().Recoveries)
}

func TestReadVectorSidecarRejectsUnalignedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.vec")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	_, err := ReadVectorSidecar(path)
	assert.ErrorContains(t, err, "unaligned")
}

func TestJournalRequiresPaths(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}
