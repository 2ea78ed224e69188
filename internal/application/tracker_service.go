package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
	"github.com/google/uuid"
)

// DefaultSessionTimeout is how long a session may sit idle before the next
// read rolls it over into a fresh one.
const DefaultSessionTimeout = 30 * time.Minute

type TrackerConfig struct {
	SessionTimeout time.Duration
}

// BoundaryData describes a token boundary being recorded.
type BoundaryData struct {
	Type     string
	Metadata map[string]any
}

// BoundaryReceipt reports the outcome of recording a boundary. Recording
// never fails the caller: persistence trouble surfaces as Recorded=false.
type BoundaryReceipt struct {
	ID       string
	Recorded bool
	Err      error
}

// TrackerService owns the session lifecycle: it detects timeout boundaries,
// rolls sessions over, and derives proximity/continuity metrics. It keeps an
// in-memory mirror of the index so reads keep working when the index file is
// missing or corrupt.
type TrackerService struct {
	index   ports.SessionIndexRepository
	clock   ports.Clock
	timeout time.Duration

	mu     sync.Mutex
	mirror []domain.SessionRecord
}

func NewTrackerService(index ports.SessionIndexRepository, clock ports.Clock, cfg TrackerConfig) *TrackerService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	return &TrackerService{index: index, clock: clock, timeout: timeout}
}

// CurrentSessionID returns the active session id, rolling the session over
// when it has been idle past the timeout. It never fails: a missing or
// corrupt index degrades to a synthesized session that is persisted on a
// best-effort basis.
func (s *TrackerService) CurrentSessionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	records := s.loadLocked(ctx)

	idx := activeIndex(records)
	if idx < 0 {
		fresh := s.newSession(now, latestSessionID(records))
		records = append(records, fresh)
		s.saveLocked(ctx, records)
		return fresh.ID
	}

	active := &records[idx]
	if now.Sub(active.LastActivity) > s.timeout {
		active.Status = domain.SessionCompleted
		active.EndTime = now
		fresh := s.newSession(now, active.ID)
		records = append(records, fresh)
		s.saveLocked(ctx, records)
		return fresh.ID
	}

	active.LastActivity = now
	s.saveLocked(ctx, records)
	return active.ID
}

// RecordBoundary appends a token boundary to the current session, creating
// one first if none is active.
func (s *TrackerService) RecordBoundary(ctx context.Context, data BoundaryData) BoundaryReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	records := s.loadLocked(ctx)

	idx := activeIndex(records)
	if idx < 0 {
		records = append(records, s.newSession(now, latestSessionID(records)))
		idx = len(records) - 1
	}
	active := &records[idx]

	boundary := domain.TokenBoundary{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: now,
		SessionID: active.ID,
		Type:      data.Type,
		Metadata:  data.Metadata,
	}
	active.Boundaries = append(active.Boundaries, boundary)
	active.LastActivity = now

	if err := s.saveLocked(ctx, records); err != nil {
		return BoundaryReceipt{ID: boundary.ID, Recorded: false, Err: err}
	}
	return BoundaryReceipt{ID: boundary.ID, Recorded: true}
}

// BoundaryInfo computes timeout proximity and the continuity score for a
// session. An empty sessionID means the active session.
func (s *TrackerService) BoundaryInfo(ctx context.Context, sessionID string) (domain.BoundaryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadLocked(ctx)

	var rec *domain.SessionRecord
	if sessionID == "" {
		if idx := activeIndex(records); idx >= 0 {
			rec = &records[idx]
		}
	} else {
		for i := range records {
			if records[i].ID == sessionID {
				rec = &records[i]
				break
			}
		}
	}
	if rec == nil {
		return domain.BoundaryInfo{}, fmt.Errorf("%w: %q", domain.ErrSessionNotFound, sessionID)
	}

	elapsed := s.clock.Now().Sub(rec.LastActivity)
	if elapsed < 0 {
		elapsed = 0
	}

	return domain.BoundaryInfo{
		SessionID:       rec.ID,
		BoundaryCount:   len(rec.Boundaries),
		Elapsed:         elapsed,
		Proximity:       domain.ProximityFor(elapsed, s.timeout),
		ContinuityScore: domain.ContinuityScore(len(rec.Boundaries), elapsed, s.timeout),
	}, nil
}

// CompleteSession explicitly ends the active session.
func (s *TrackerService) CompleteSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadLocked(ctx)
	idx := activeIndex(records)
	if idx < 0 {
		return domain.ErrNoActiveSession
	}

	records[idx].Status = domain.SessionCompleted
	records[idx].EndTime = s.clock.Now()

	if err := s.saveLocked(ctx, records); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// Sessions returns all known session records, newest last.
func (s *TrackerService) Sessions(ctx context.Context) []domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Timeout reports the configured session boundary timeout.
func (s *TrackerService) Timeout() time.Duration { return s.timeout }

func (s *TrackerService) newSession(now time.Time, previousID string) domain.SessionRecord {
	return domain.SessionRecord{
		ID:                uuid.Must(uuid.NewV7()).String(),
		StartTime:         now,
		LastActivity:      now,
		Status:            domain.SessionActive,
		PreviousSessionID: previousID,
	}
}

// loadLocked reads the index, falling back to the in-memory mirror when the
// read fails. Callers must hold s.mu.
func (s *TrackerService) loadLocked(ctx context.Context) []domain.SessionRecord {
	records, err := s.index.Load(ctx)
	if err != nil {
		slog.Warn("session index unreadable, using in-memory mirror", "error", err)
		return cloneRecords(s.mirror)
	}
	s.mirror = cloneRecords(records)
	return records
}

// saveLocked persists the index and updates the mirror regardless, so a
// write failure degrades durability but not liveness.
func (s *TrackerService) saveLocked(ctx context.Context, records []domain.SessionRecord) error {
	s.mirror = cloneRecords(records)
	if err := s.index.Save(ctx, records); err != nil {
		slog.Error("session index write failed", "error", err)
		return fmt.Errorf("save session index: %w", err)
	}
	return nil
}

func activeIndex(records []domain.SessionRecord) int {
	for i := range records {
		if records[i].Status == domain.SessionActive {
			return i
		}
	}
	return -1
}

// latestSessionID picks the most recently touched session, used to chain
// PreviousSessionID across restarts.
func latestSessionID(records []domain.SessionRecord) string {
	var id string
	var latest time.Time
	for i := range records {
		if records[i].LastActivity.After(latest) {
			latest = records[i].LastActivity
			id = records[i].ID
		}
	}
	return id
}

func cloneRecords(records []domain.SessionRecord) []domain.SessionRecord {
	out := make([]domain.SessionRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Boundaries = append([]domain.TokenBoundary(nil), out[i].Boundaries...)
	}
	return out
}
