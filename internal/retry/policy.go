// Package retry applies a uniform retry policy at external call sites.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
)

// Policy retries an operation a bounded number of times with a fixed backoff
// between attempts. Only rate-limit signals are retried; every other error
// is returned to the caller on the first attempt.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. The last error is returned unwrapped so
// callers can still classify it with errors.Is.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempt == attempts {
			return err
		}

		timer := time.NewTimer(p.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
