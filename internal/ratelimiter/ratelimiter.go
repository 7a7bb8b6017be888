// Package ratelimiter enforces the client's TPS cap on submissions to
// the remote runtime, the same way attacker.Attack throttles workers
// with golang.org/x/time/rate.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter blocks callers until at least 1/tpsLimit seconds have elapsed
// since the previous successful Acquire. It is single-owner: callers
// must not share one Limiter across concurrent Client instances.
type Limiter struct {
	l *rate.Limiter
}

// New creates a Limiter enforcing tpsLimit submissions per second. A
// burst of 1 means the very first Acquire never waits, matching the
// spec's "first HEAD/submit fires without waiting" intent for a cold
// client.
func New(tpsLimit int) *Limiter {
	if tpsLimit <= 0 {
		tpsLimit = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(tpsLimit), 1)}
}

// Acquire blocks until the next submission slot is available or ctx is
// cancelled.
func (r *Limiter) Acquire(ctx context.Context) error {
	return r.l.Wait(ctx)
}
