package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/continuity/internal/domain"
)

func testRecord(id string) domain.SessionRecord {
	start := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	return domain.SessionRecord{
		ID:           id,
		StartTime:    start,
		LastActivity: start.Add(5 * time.Minute),
		Status:       domain.SessionActive,
		Boundaries: []domain.TokenBoundary{{
			ID:        id + "-b1",
			Timestamp: start.Add(2 * time.Minute),
			SessionID: id,
			Type:      "context_switch",
			Metadata:  map[string]any{"topic": "storage"},
		}},
	}
}

func TestIndexRepositoryRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sessions", "index.json")
	repo, err := NewIndexRepository(path)
	require.NoError(t, err)
	ctx := context.Background()

	want := []domain.SessionRecord{testRecord("s1"), testRecord("s2")}
	want[1].Status = domain.SessionCompleted
	want[1].EndTime = want[1].LastActivity
	want[1].PreviousSessionID = "s1"

	require.NoError(t, repo.Save(ctx, want))

	// A fresh repository instance reads the same records back from disk.
	reloaded, err := NewIndexRepository(path)
	require.NoError(t, err)
	got, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.True(t, want[0].StartTime.Equal(got[0].StartTime))
	require.Len(t, got[0].Boundaries, 1)
	assert.Equal(t, "context_switch", got[0].Boundaries[0].Type)
	assert.Equal(t, domain.SessionCompleted, got[1].Status)
	assert.Equal(t, "s1", got[1].PreviousSessionID)
	assert.True(t, got[0].EndTime.IsZero(), "active session has no end time")
}

func TestIndexRepositoryMissingFile(t *testing.T) {
	t.Parallel()
	repo, err := NewIndexRepository(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	records, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestIndexRepositoryCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	repo, err := NewIndexRepository(path)
	require.NoError(t, err)

	_, err = repo.Load(context.Background())
	assert.ErrorContains(t, err, "decode session index")
}

func TestIndexRepositorySaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := NewIndexRepository(filepath.Join(dir, "index.json"))
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), []domain.SessionRecord{testRecord("s1")}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.json", entries[0].Name())
}

func TestIndexRepositoryRespectsContext(t *testing.T) {
	t.Parallel()
	repo, err := NewIndexRepository(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.Save(ctx, nil), context.Canceled)
}

func TestDataRepositoryRoundTrip(t *testing.T) {
	t.Parallel()
	repo, err := NewDataRepository(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	ctx := context.Background()

	entries := map[string]json.RawMessage{
		"decisions:DR-014": json.RawMessage(`"Java"`),
		"notes:alpha":      json.RawMessage(`{"n":1}`),
	}
	require.NoError(t, repo.Save(ctx, "s1", entries))

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `"Java"`, string(got["decisions:DR-014"]))
	assert.JSONEq(t, `{"n":1}`, string(got["notes:alpha"]))
}

func TestDataRepositoryLoadMissingSession(t *testing.T) {
	t.Parallel()
	repo, err := NewDataRepository(t.TempDir())
	require.NoError(t, err)

	got, err := repo.Load(context.Background(), "never-written")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDataRepositoryListSessions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := NewDataRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "s1", map[string]json.RawMessage{"k:a": json.RawMessage(`1`)}))
	require.NoError(t, repo.Save(ctx, "s2", map[string]json.RawMessage{"k:b": json.RawMessage(`2`)}))

	// Noise that must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o700))

	ids, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestDataRepositoryListMissingDirectory(t *testing.T) {
	t.Parallel()
	repo, err := NewDataRepository(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	ids, err := repo.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDataRepositoryRejectsPathTraversal(t *testing.T) {
	t.Parallel()
	repo, err := NewDataRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Load(ctx, "../escape")
	assert.Error(t, err)
	assert.Error(t, repo.Save(ctx, "a/b", nil))
	_, err = repo.Load(ctx, "")
	assert.Error(t, err)
}

func TestWriteAtomicCreatesParentDirs(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deep", "nested", "file.json")
	require.NoError(t, writeAtomic(path, []byte("{}")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteAtomicOverwrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, writeAtomic(path, []byte("first")))
	require.NoError(t, writeAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLockForPathSharedAcrossInstances(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.json")
	a, err := NewIndexRepository(path)
	require.NoError(t, err)
	b, err := NewIndexRepository(path)
	require.NoError(t, err)

	assert.Same(t, a.mu, b.mu, "both instances must serialize on one lock")
}
