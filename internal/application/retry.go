package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy is the shared initialization retry policy. Components that
// need to set up storage or reach a collaborator at startup all use the same
// policy instead of carrying their own attempt counters.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy retries three times with a short fixed delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 250 * time.Millisecond}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		slog.Warn("retrying", "op", op, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
