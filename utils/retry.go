package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds a retry loop. Delay before retry n (1-based) is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error deserves another attempt. nil retries everything.
	Retryable func(error) bool
}

// Backoff returns the wait before the given zero-based retry
func (p RetryPolicy) Backoff(retry int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(retry))
}

// RetryWithBackoff runs fn until it succeeds, a non-retryable error occurs, the
// attempts are exhausted or ctx is done. The last error is returned wrapped.
func RetryWithBackoff(ctx context.Context, policy RetryPolicy, fn func(attempt int) error, logger *Logger) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := policy.Backoff(attempt - 1)
			logger.Warn("Retrying (attempt %d/%d) after %v...", attempt+1, attempts, backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Attempt %d/%d failed: %v", attempt+1, attempts, err)

		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", lastErr)
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return lastErr
		}
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}
