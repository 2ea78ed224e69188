package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ContextItem is an atomic, prioritized unit of text prepared for prompt
// injection. Items are ephemeral: built by a provider call, consumed by one
// assembly, never persisted as such.
type ContextItem struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Priority float64 `json:"priority"`
}

// Validate checks the minimal item schema: type, id, title, and content must
// be present and non-empty, and priority must stay within [0,1].
func (i ContextItem) Validate() error {
	for field, value := range map[string]string{
		"type":    i.Type,
		"id":      i.ID,
		"title":   i.Title,
		"content": i.Content,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidContextItem, field)
		}
	}
	if i.Priority < 0 || i.Priority > 1 {
		return fmt.Errorf("%w: priority %v out of range", ErrInvalidContextItem, i.Priority)
	}
	return nil
}

// SortByPriority orders items by descending priority. Ties keep their
// original encounter order.
func SortByPriority(items []ContextItem) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Priority > items[b].Priority
	})
}

// ContextBundle is the result of one assembly: a ranked, validated item list
// plus the inputs that produced it.
type ContextBundle struct {
	Strategy    string        `json:"strategy"`
	Query       string        `json:"query"`
	Items       []ContextItem `json:"items"`
	Success     bool          `json:"success"`
	Fallback    bool          `json:"fallback,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}
