package application

import (
	"context"
	"fmt"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
	"github.com/google/uuid"
)

// SessionProvider surfaces current-session metadata as context items so a
// new inference call can be told where the previous one left off.
type SessionProvider struct {
	tracker *TrackerService
	data    *DataService
}

var _ ports.Provider = (*SessionProvider)(nil)

func NewSessionProvider(tracker *TrackerService, data *DataService) *SessionProvider {
	return &SessionProvider{tracker: tracker, data: data}
}

func (p *SessionProvider) Name() string { return ProviderSession }

func (p *SessionProvider) Fetch(ctx context.Context, _ string, opts ports.ProviderOptions) ([]domain.ContextItem, error) {
	sessionID := p.tracker.CurrentSessionID(ctx)
	info, err := p.tracker.BoundaryInfo(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session boundary info: %w", err)
	}

	items := []domain.ContextItem{{
		Type:  ProviderSession,
		ID:    "session-" + sessionID,
		Title: "Active session",
		Content: fmt.Sprintf("Session %s: %d token boundaries recorded, continuity score %.2f, boundary proximity %s.",
			sessionID, info.BoundaryCount, info.ContinuityScore, info.Proximity),
		Priority: 0.8,
	}}

	for _, rec := range p.tracker.Sessions(ctx) {
		if rec.ID == sessionID && rec.PreviousSessionID != "" {
			items = append(items, domain.ContextItem{
				Type:     ProviderSession,
				ID:       "session-prev-" + rec.PreviousSessionID,
				Title:    "Previous session",
				Content:  fmt.Sprintf("This session continues session %s.", rec.PreviousSessionID),
				Priority: 0.6,
			})
		}
	}

	return capItems(items, opts.MaxItems), nil
}

// BoundaryProvider contributes the boundary metadata item used by the
// boundary strategy right after a token boundary is detected.
type BoundaryProvider struct {
	tracker *TrackerService
}

var _ ports.Provider = (*BoundaryProvider)(nil)

func NewBoundaryProvider(tracker *TrackerService) *BoundaryProvider {
	return &BoundaryProvider{tracker: tracker}
}

func (p *BoundaryProvider) Name() string { return ProviderBoundary }

func (p *BoundaryProvider) Fetch(ctx context.Context, _ string, opts ports.ProviderOptions) ([]domain.ContextItem, error) {
	// Read the active session without refreshing its activity: proximity must
	// reflect real idle time, and an informational fetch is not activity.
	info, err := p.tracker.BoundaryInfo(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("boundary info: %w", err)
	}

	items := []domain.ContextItem{{
		Type:  ProviderBoundary,
		ID:    "boundary-" + info.SessionID,
		Title: "Token boundary state",
		Content: fmt.Sprintf("Boundary proximity is %s; %d boundaries so far; estimated continuity %.2f. Context before the last boundary is not in model memory.",
			info.Proximity, info.BoundaryCount, info.ContinuityScore),
		Priority: 0.9,
	}}
	return capItems(items, opts.MaxItems), nil
}

// SemanticProvider embeds the query against the embedding backend and
// synthesizes a single semantic recall item. It is also the assembler's
// last-resort fallback when a strategy yields nothing.
type SemanticProvider struct {
	embedder ports.Embedder
}

var _ ports.Provider = (*SemanticProvider)(nil)

func NewSemanticProvider(embedder ports.Embedder) *SemanticProvider {
	return &SemanticProvider{embedder: embedder}
}

func (p *SemanticProvider) Name() string { return ProviderSemantic }

func (p *SemanticProvider) Fetch(ctx context.Context, query string, opts ports.ProviderOptions) ([]domain.ContextItem, error) {
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	item := domain.ContextItem{
		Type:     ProviderSemantic,
		ID:       uuid.Must(uuid.NewV7()).String(),
		Title:    "Semantic recall",
		Content:  fmt.Sprintf("Query %q embedded into a %d-dimension vector for similarity recall.", query, len(vector)),
		Priority: 0.5,
	}
	if opts.RelevanceThreshold > item.Priority {
		return nil, nil
	}
	return []domain.ContextItem{item}, nil
}

func capItems(items []domain.ContextItem, max int) []domain.ContextItem {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
