package jsonfile

import (
	"time"

	"github.com/bnema/continuity/internal/domain"
)

type sessionSchema struct {
	ID                string           `json:"id"`
	StartTime         string           `json:"start_time"`
	LastActivity      string           `json:"last_activity"`
	EndTime           string           `json:"end_time,omitempty"`
	Status            string           `json:"status"`
	TokenBoundaries   []boundarySchema `json:"token_boundaries"`
	PreviousSessionID string           `json:"previous_session_id,omitempty"`
}

type boundarySchema struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Type      string         `json:"type,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func toSchema(record domain.SessionRecord) sessionSchema {
	boundaries := make([]boundarySchema, 0, len(record.Boundaries))
	for _, b := range record.Boundaries {
		boundaries = append(boundaries, boundarySchema{
			ID:        b.ID,
			Timestamp: formatTime(b.Timestamp),
			SessionID: b.SessionID,
			Type:      b.Type,
			Metadata:  b.Metadata,
		})
	}

	return sessionSchema{
		ID:                record.ID,
		StartTime:         formatTime(record.StartTime),
		LastActivity:      formatTime(record.LastActivity),
		EndTime:           formatTime(record.EndTime),
		Status:            string(record.Status),
		TokenBoundaries:   boundaries,
		PreviousSessionID: record.PreviousSessionID,
	}
}

func fromSchema(record sessionSchema) domain.SessionRecord {
	boundaries := make([]domain.TokenBoundary, 0, len(record.TokenBoundaries))
	for _, b := range record.TokenBoundaries {
		boundaries = append(boundaries, domain.TokenBoundary{
			ID:        b.ID,
			Timestamp: parseTime(b.Timestamp),
			SessionID: b.SessionID,
			Type:      b.Type,
			Metadata:  b.Metadata,
		})
	}

	return domain.SessionRecord{
		ID:                record.ID,
		StartTime:         parseTime(record.StartTime),
		LastActivity:      parseTime(record.LastActivity),
		EndTime:           parseTime(record.EndTime),
		Status:            domain.SessionStatus(record.Status),
		Boundaries:        boundaries,
		PreviousSessionID: record.PreviousSessionID,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339Nano)
}
