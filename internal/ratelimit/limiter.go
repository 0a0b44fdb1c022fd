// Package ratelimit spaces out calls to external APIs on a per-key basis.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between calls that share a key.
// Distinct keys (per-marketplace pricing, fees, catalog) are independent
// clocks. The first call for a key returns immediately.
//
// The contract is spacing, not mutual exclusion: callers that need strict
// single-in-flight-per-key behavior must add their own lock.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an empty Limiter. Per-key state is created lazily on first use.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Wait suspends the caller only long enough that the time since the previous
// call with the same key is at least minInterval. It returns early with the
// context error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, key string, minInterval time.Duration) error {
	if minInterval <= 0 {
		return nil
	}
	if err := l.forKey(key, minInterval).Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: wait %s: %w", key, err)
	}
	return nil
}

// forKey returns the limiter for key, creating it on first use. A changed
// interval for an existing key takes effect on the next reservation.
func (l *Limiter) forKey(key string, minInterval time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(minInterval), 1)
		l.limiters[key] = lim
		return lim
	}
	if want := rate.Every(minInterval); lim.Limit() != want {
		lim.SetLimit(want)
	}
	return lim
}
