package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
)

// fakeClock is a manually advanced clock shared by the service tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// inMemoryIndexRepo implements ports.SessionIndexRepository with optional
// failure injection.
type inMemoryIndexRepo struct {
	mu       sync.Mutex
	records  []domain.SessionRecord
	failLoad bool
	failSave bool
}

var errRepoDown = errors.New("repository unavailable")

func (r *inMemoryIndexRepo) Load(_ context.Context) ([]domain.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failLoad {
		return nil, errRepoDown
	}
	return append([]domain.SessionRecord(nil), r.records...), nil
}

func (r *inMemoryIndexRepo) Save(_ context.Context, records []domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errRepoDown
	}
	r.records = append([]domain.SessionRecord(nil), records...)
	return nil
}

// inMemoryDataRepo implements ports.SessionDataRepository.
type inMemoryDataRepo struct {
	mu       sync.Mutex
	sessions map[string]map[string]json.RawMessage
	failing  bool
}

func newInMemoryDataRepo() *inMemoryDataRepo {
	return &inMemoryDataRepo{sessions: map[string]map[string]json.RawMessage{}}
}

func (r *inMemoryDataRepo) Load(_ context.Context, sessionID string) (map[string]json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errRepoDown
	}
	out := map[string]json.RawMessage{}
	for k, v := range r.sessions[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (r *inMemoryDataRepo) Save(_ context.Context, sessionID string, data map[string]json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errRepoDown
	}
	copied := map[string]json.RawMessage{}
	for k, v := range data {
		copied[k] = v
	}
	r.sessions[sessionID] = copied
	return nil
}

func (r *inMemoryDataRepo) ListSessions(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errRepoDown
	}
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// stubProvider returns canned items and counts invocations.
type stubProvider struct {
	name  string
	items []domain.ContextItem
	err   error
	panic bool

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(_ context.Context, _ string, opts ports.ProviderOptions) ([]domain.ContextItem, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.panic {
		panic("provider blew up")
	}
	if p.err != nil {
		return nil, p.err
	}
	items := append([]domain.ContextItem(nil), p.items...)
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}
	return items, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// stubEmbedder implements ports.Embedder.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}
