package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DataRepository stores one JSON object per session under
// <dir>/<session-id>.json, mapping flattened "namespace:key" strings to
// arbitrary JSON values.
type DataRepository struct {
	dir string
	mu  *sync.RWMutex
}

func NewDataRepository(dir string) (*DataRepository, error) {
	if dir == "" {
		return nil, errors.New("session data directory is empty")
	}
	dir, err := normalizePath(dir)
	if err != nil {
		return nil, err
	}
	return &DataRepository{dir: dir, mu: lockForPath(dir)}, nil
}

func (r *DataRepository) Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.pathFor(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read session data %q: %w", sessionID, err)
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode session data %q: %w", sessionID, err)
	}
	return entries, nil
}

func (r *DataRepository) Save(ctx context.Context, sessionID string, entries map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.pathFor(sessionID)
	if err != nil {
		return err
	}

	if entries == nil {
		entries = map[string]json.RawMessage{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session data %q: %w", sessionID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write session data %q: %w", sessionID, err)
	}
	return nil
}

func (r *DataRepository) ListSessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list session data directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (r *DataRepository) pathFor(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(r.dir, sessionID+".json"), nil
}
