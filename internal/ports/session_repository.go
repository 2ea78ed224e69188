package ports

import (
	"context"
	"encoding/json"

	"github.com/bnema/continuity/internal/domain"
)

// SessionIndexRepository persists the index of all session records. The
// index is the sole source of truth for session existence.
type SessionIndexRepository interface {
	Load(ctx context.Context) ([]domain.SessionRecord, error)
	Save(ctx context.Context, records []domain.SessionRecord) error
}

// SessionDataRepository persists per-session key-value data. Each session
// owns one flattened "namespace:key" -> value mapping. Loading a session
// that has no data yet returns an empty map, not an error.
type SessionDataRepository interface {
	Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, sessionID string, data map[string]json.RawMessage) error
	ListSessions(ctx context.Context) ([]string, error)
}
