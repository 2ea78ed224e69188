package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
)

// IndexRepository stores the session index as one JSON array. The whole
// index is rewritten per mutation, but always through an atomic replace so
// readers never observe a torn file.
type IndexRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SessionIndexRepository = (*IndexRepository)(nil)

func NewIndexRepository(path string) (*IndexRepository, error) {
	if path == "" {
		return nil, errors.New("session index path is empty")
	}
	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	return &IndexRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *IndexRepository) Load(ctx context.Context) ([]domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var schemas []sessionSchema
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}

	records := make([]domain.SessionRecord, 0, len(schemas))
	for _, schema := range schemas {
		records = append(records, fromSchema(schema))
	}
	return records, nil
}

func (r *IndexRepository) Save(ctx context.Context, records []domain.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schemas := make([]sessionSchema, 0, len(records))
	for _, record := range records {
		schemas = append(schemas, toSchema(record))
	}

	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeAtomic(r.path, data); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	return nil
}
