package utils

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outgoing requests by a fixed minimum delay
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter with the given delay in milliseconds.
// A non-positive delay disables limiting.
func NewRateLimiter(delayMs int) *RateLimiter {
	if delayMs <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	every := rate.Every(time.Duration(delayMs) * time.Millisecond)
	return &RateLimiter{limiter: rate.NewLimiter(every, 1)}
}

// Wait blocks until the next request is allowed or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
