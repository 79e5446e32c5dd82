package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles accepted connections using the token bucket algorithm.
//
// This implementation wraps golang.org/x/time/rate:
//  1. Tokens are added to the bucket at a constant rate (connections per second)
//  2. Each accepted connection consumes one token
//  3. When the bucket is empty, the connection is rejected (Allow) or the
//     accept loop waits for a token (Wait)
//  4. Burst capacity absorbs short spikes above the sustained rate
//
// A nil *RateLimiter allows everything, so callers can keep a single code
// path whether or not limiting is configured.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing perSecond sustained events with the
// given burst.
//
// Special cases:
//   - perSecond <= 0: returns nil (unlimited)
//   - burst <= 0: burst defaults to ceil(perSecond), at least 1
//
// Example:
//
//	// Accept 500 conn/s sustained, 1000 in a burst
//	limiter := New(500, 1000)
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
		if float64(burst) < perSecond {
			burst++
		}
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow reports whether one event may happen now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Returns the context error if ctx ends first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Limit returns the sustained rate, or 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}

// Burst returns the bucket capacity, or 0 when unlimited.
func (r *RateLimiter) Burst() int {
	if r == nil {
		return 0
	}
	return r.limiter.Burst()
}

// Tokens returns the number of tokens currently available.
// Primarily useful for monitoring and tests.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return 0
	}
	return r.limiter.Tokens()
}
