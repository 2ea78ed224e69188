package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
	"github.com/google/uuid"
)

// Well-known keys within the session data namespace.
const (
	assertionsNamespace = "assertions"
	assertionsKey       = "log"
	boundaryNamespace   = "boundaries"
	assemblyNamespace   = "assemblies"
)

// sessionTracker is the slice of TrackerService the data store consumes.
type sessionTracker interface {
	CurrentSessionID(ctx context.Context) string
	RecordBoundary(ctx context.Context, data BoundaryData) BoundaryReceipt
}

// DataService is the per-session durable key-value store. All operations
// favor availability: failures are logged and reported as false/empty
// results, never as panics or process-level errors.
type DataService struct {
	tracker sessionTracker
	repo    ports.SessionDataRepository
	clock   ports.Clock
	mu      sync.Mutex
}

func NewDataService(tracker sessionTracker, repo ports.SessionDataRepository, clock ports.Clock) *DataService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &DataService{tracker: tracker, repo: repo, clock: clock}
}

// Store persists value under namespace:key in the active session's data file.
func (s *DataService) Store(ctx context.Context, namespace, key string, value any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("session data value not serializable", "namespace", namespace, "key", key, "error", err)
		return false
	}
	return s.storeRaw(ctx, namespace, key, raw)
}

func (s *DataService) storeRaw(ctx context.Context, namespace, key string, raw json.RawMessage) bool {
	sessionID := s.tracker.CurrentSessionID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		slog.Error("load session data", "session", sessionID, "error", err)
		return false
	}
	data[flatKey(namespace, key)] = raw

	if err := s.repo.Save(ctx, sessionID, data); err != nil {
		slog.Error("save session data", "session", sessionID, "error", err)
		return false
	}
	return true
}

// Get reads namespace:key from the active session's data file.
func (s *DataService) Get(ctx context.Context, namespace, key string) (json.RawMessage, bool) {
	sessionID := s.tracker.CurrentSessionID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		slog.Error("load session data", "session", sessionID, "error", err)
		return nil, false
	}

	raw, ok := data[flatKey(namespace, key)]
	return raw, ok
}

// Delete removes namespace:key from the active session's data file. Deleting
// an absent key succeeds.
func (s *DataService) Delete(ctx context.Context, namespace, key string) bool {
	sessionID := s.tracker.CurrentSessionID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		slog.Error("load session data", "session", sessionID, "error", err)
		return false
	}
	delete(data, flatKey(namespace, key))

	if err := s.repo.Save(ctx, sessionID, data); err != nil {
		slog.Error("save session data", "session", sessionID, "error", err)
		return false
	}
	return true
}

// Clear empties the active session's data file.
func (s *DataService) Clear(ctx context.Context) bool {
	sessionID := s.tracker.CurrentSessionID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(ctx, sessionID, map[string]json.RawMessage{}); err != nil {
		slog.Error("clear session data", "session", sessionID, "error", err)
		return false
	}
	return true
}

// ListSessions enumerates the ids of all sessions with a data file.
func (s *DataService) ListSessions(ctx context.Context) []string {
	ids, err := s.repo.ListSessions(ctx)
	if err != nil {
		slog.Error("list session data files", "error", err)
		return nil
	}
	return ids
}

// RetrieveAcrossSessions looks namespace:key up in the active session first,
// then scans all other known session files and returns the first match plus
// the id of the session it came from. Enumeration order is whatever the
// repository yields; across equally valid matches the winner is therefore
// not deterministic.
func (s *DataService) RetrieveAcrossSessions(ctx context.Context, namespace, key string) (json.RawMessage, string, bool) {
	if raw, ok := s.Get(ctx, namespace, key); ok {
		return raw, s.tracker.CurrentSessionID(ctx), true
	}

	activeID := s.tracker.CurrentSessionID(ctx)
	flat := flatKey(namespace, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.repo.ListSessions(ctx)
	if err != nil {
		slog.Error("list session data files", "error", err)
		return nil, "", false
	}

	for _, id := range ids {
		if id == activeID {
			continue
		}
		data, err := s.repo.Load(ctx, id)
		if err != nil {
			slog.Warn("skip unreadable session data file", "session", id, "error", err)
			continue
		}
		if raw, ok := data[flat]; ok {
			return raw, id, true
		}
	}
	return nil, "", false
}

// Assert appends a structured pass/fail record under the well-known
// assertions key and returns the condition so callers can chain it.
func (s *DataService) Assert(ctx context.Context, name string, condition bool, message string) bool {
	record := domain.AssertionRecord{
		Name:      name,
		Passed:    condition,
		Message:   message,
		Timestamp: s.clock.Now(),
	}

	var log []domain.AssertionRecord
	if raw, ok := s.Get(ctx, assertionsNamespace, assertionsKey); ok {
		if err := json.Unmarshal(raw, &log); err != nil {
			slog.Warn("assertion log corrupt, starting fresh", "error", err)
			log = nil
		}
	}
	log = append(log, record)

	if !s.Store(ctx, assertionsNamespace, assertionsKey, log) {
		slog.Warn("assertion record not persisted", "name", name)
	}
	return condition
}

// Assertions returns the accumulated assertion log for the active session.
func (s *DataService) Assertions(ctx context.Context) []domain.AssertionRecord {
	raw, ok := s.Get(ctx, assertionsNamespace, assertionsKey)
	if !ok {
		return nil
	}
	var log []domain.AssertionRecord
	if err := json.Unmarshal(raw, &log); err != nil {
		slog.Warn("assertion log corrupt", "error", err)
		return nil
	}
	return log
}

// boundaryMarker is the session-data record written for each boundary event.
type boundaryMarker struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// CreateSessionBoundary is the single call sites use to mark that a
// boundary-relevant event happened: it stores a marker as session data and
// forwards the event to the tracker.
func (s *DataService) CreateSessionBoundary(ctx context.Context, data map[string]any) (string, bool) {
	markerID := uuid.Must(uuid.NewV7()).String()

	marker := boundaryMarker{
		ID:        markerID,
		CreatedAt: s.clock.Now().Format("2006-01-02T15:04:05.000Z07:00"),
		Data:      data,
	}
	stored := s.Store(ctx, boundaryNamespace, markerID, marker)

	boundaryType := "event"
	if t, ok := data["type"].(string); ok && t != "" {
		boundaryType = t
	}
	receipt := s.tracker.RecordBoundary(ctx, BoundaryData{Type: boundaryType, Metadata: data})
	if !receipt.Recorded {
		slog.Warn("boundary marker stored but tracker record failed", "marker", markerID, "error", receipt.Err)
	}

	return markerID, stored && receipt.Recorded
}

func flatKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}
