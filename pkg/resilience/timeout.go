// Package resilience bounds how long a caller can hold on to a slow or
// unavailable backend: per-operation deadlines, retry with backoff, and typed
// results for fan-out queries whose failures are handled independently.
package resilience

import (
	"context"
	"errors"
	"time"

	"pharmalytics/internal/core/apperror"
)

// WithTimeout runs fn under a deadline of d. If fn has not returned when the
// deadline fires, WithTimeout returns an apperror timeout immediately and the
// eventual result of fn is discarded. fn receives the derived context, so
// context-aware drivers cancel the abandoned work.
//
// A non-positive d disables the deadline.
func WithTimeout[T any](ctx context.Context, operation string, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	// Buffered so the goroutine never blocks on send after we stop listening.
	done := make(chan outcome, 1)

	go func() {
		v, err := fn(tctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, apperror.NewTimeout(operation, d).WithCause(out.err)
		}
		return out.val, out.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, apperror.NewTimeout(operation, d)
	}
}
