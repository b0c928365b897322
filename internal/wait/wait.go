// Package wait provides a bounded "wait for predicate" primitive.
package wait

import (
	"context"
	"time"
)

// DefaultInterval is how often a condition is re-evaluated.
const DefaultInterval = 100 * time.Millisecond

// Condition reports whether the awaited state has been reached. Errors are
// treated as "not yet": the page may be mid-render.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it reports
// true or timeout elapses. A timeout is not an error: Until returns false,
// nil. Only cancellation of ctx yields an error. The ticker and timer are
// released on every exit path.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) (bool, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if ok, _ := cond(ctx); ok {
		return true, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			if ok, _ := cond(ctx); ok {
				return true, nil
			}
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
