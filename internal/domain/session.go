package domain

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// SessionRecord tracks one logical interaction window. Records are never
// deleted; a session leaves the active state only by being marked completed.
type SessionRecord struct {
	ID                string
	StartTime         time.Time
	LastActivity      time.Time
	EndTime           time.Time
	Status            SessionStatus
	Boundaries        []TokenBoundary
	PreviousSessionID string
}

// TokenBoundary marks the discontinuity between two inference calls beyond
// which prior in-model context is not preserved. Boundaries are append-only.
type TokenBoundary struct {
	ID        string
	Timestamp time.Time
	SessionID string
	Type      string
	Metadata  map[string]any
}

// Proximity buckets how close the active session is to its timeout boundary.
type Proximity string

const (
	ProximityFar      Proximity = "far"
	ProximityMedium   Proximity = "medium"
	ProximityClose    Proximity = "close"
	ProximityImminent Proximity = "imminent"
)

// ProximityFor maps elapsed/timeout into quartile buckets.
func ProximityFor(elapsed, timeout time.Duration) Proximity {
	if timeout <= 0 {
		return ProximityImminent
	}
	ratio := float64(elapsed) / float64(timeout)
	switch {
	case ratio < 0.25:
		return ProximityFar
	case ratio < 0.5:
		return ProximityMedium
	case ratio < 0.75:
		return ProximityClose
	default:
		return ProximityImminent
	}
}

// ContinuityScore estimates how much cross-boundary context may have been
// lost, on a 0-1 scale. Each recorded boundary costs 0.05 and elapsed time
// costs up to half the score; both penalties are capped at 0.5. The
// constants are heuristic and kept as-is for parity with observed behavior.
func ContinuityScore(boundaryCount int, elapsed, timeout time.Duration) float64 {
	boundaryPenalty := 0.05 * float64(boundaryCount)
	if boundaryPenalty > 0.5 {
		boundaryPenalty = 0.5
	}

	var agePenalty float64
	if timeout > 0 {
		agePenalty = float64(elapsed) / float64(timeout) * 0.5
	}
	if agePenalty > 0.5 {
		agePenalty = 0.5
	}

	score := 1 - boundaryPenalty - agePenalty
	if score < 0 {
		return 0
	}
	return score
}

// BoundaryInfo is the derived view of a session's boundary state.
type BoundaryInfo struct {
	SessionID       string
	BoundaryCount   int
	Elapsed         time.Duration
	Proximity       Proximity
	ContinuityScore float64
}
