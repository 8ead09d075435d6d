package resilience

import (
	"context"
	"fmt"
	"time"

	"pharmalytics/internal/core/apperror"
	"pharmalytics/pkg/logger"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Retryable classifies errors. Nil means IsRetryable.
	Retryable func(error) bool

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s backoff capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
	}
}

// IsRetryable reports whether err is a transient connectivity failure or a
// timeout on a blocking query. Everything else fails fast.
func IsRetryable(err error) bool {
	return apperror.IsTransient(err) || apperror.IsTimeout(err)
}

// Delay returns the wait before attempt+1, attempt being 1-based.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The last error is returned wrapped, so apperror
// classification still works on it.
func Retry[T any](ctx context.Context, operation string, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "operation succeeded after retry", "operation", operation, "attempt", attempt)
			}
			return val, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.Warn(ctx, "operation failed, not retrying", "operation", operation, "attempt", attempt, "error", err)
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn(ctx, "operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", operation, ctx.Err())
		case <-timer.C:
		}
	}

	logger.Error(ctx, "operation failed after all attempts", "operation", operation, "attempts", attempts, "error", lastErr)
	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
