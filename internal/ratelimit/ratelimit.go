// Package ratelimit spaces outbound calls to the upstream market data API.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"golang.org/x/time/rate"
)

// Limiter blocks until the caller may issue its next upstream request.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter enforces a minimum interval between calls.
//
// The first call never blocks. Later calls block until at least interval has
// elapsed since the previous Wait returned. The limiter is constructed once per
// run and shared by everything issuing calls against the same quota.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	// last is None until the first Wait returns.
	last optional.Option[time.Time]
	now  func() time.Time
}

// New creates a limiter that allows one call per interval. An interval of zero
// disables waiting.
func New(interval time.Duration) *RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(limit, 1),
		last:    optional.None[time.Time](),
		now:     time.Now,
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.IsNone() {
		// The bucket starts full; take the token so the next call waits a full interval.
		r.limiter.Allow()
	} else if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	r.last = optional.Some(r.now())

	return nil
}
