// Package ratelimiter paces wire calls with a token bucket.
//
// Both ends of the fetch protocol use it: the RPC session waits for a token
// before each call so a single client never floods the backend, and the
// fetch adapter rejects calls on a connection once its bucket is empty.
package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is safe for concurrent use. A nil *RateLimiter never limits,
// which lets callers keep an unconfigured limiter without nil checks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New returns a limiter admitting callsPerSecond sustained calls with the
// given burst. A zero rate disables limiting and returns nil. A zero burst
// defaults to the rate.
func New(callsPerSecond float64, burst int) *RateLimiter {
	if callsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(callsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Delay returns how long a caller would have to wait for the next token
// without consuming it.
func (r *RateLimiter) Delay() time.Duration {
	if r == nil {
		return 0
	}
	res := r.limiter.Reserve()
	d := res.Delay()
	res.Cancel()
	return d
}

// Limit returns the configured sustained rate, or 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}
