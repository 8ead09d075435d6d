package resilience

import (
	"context"
	"errors"
	"time"

	"pharmalytics/internal/core/apperror"
)

// ErrorKind classifies why a sub-query failed.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTimeout   ErrorKind = "timeout"
	KindTransient ErrorKind = "transient"
	KindCanceled  ErrorKind = "canceled"
	KindOther     ErrorKind = "error"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case apperror.IsTimeout(err):
		return KindTimeout
	case apperror.IsTransient(err):
		return KindTransient
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindOther
	}
}

// Outcome is the type-erased view of a Result used by fan-out reductions.
type Outcome interface {
	QueryName() string
	Failed() bool
	Cause() error
}

// Result holds the settled outcome of one sub-query: either a value or an
// error, never both.
type Result[T any] struct {
	Name    string
	Value   T
	Err     error
	Kind    ErrorKind
	Elapsed time.Duration
}

// QueryName implements Outcome.
func (r Result[T]) QueryName() string { return r.Name }

// Failed implements Outcome.
func (r Result[T]) Failed() bool { return r.Err != nil }

// Cause implements Outcome.
func (r Result[T]) Cause() error { return r.Err }

// ValueOr returns the value, or def when the query failed.
func (r Result[T]) ValueOr(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// Settle runs fn under WithTimeout and captures the outcome instead of
// returning the error, so sibling queries are unaffected by its failure.
func Settle[T any](ctx context.Context, name string, d time.Duration, fn func(ctx context.Context) (T, error)) Result[T] {
	start := time.Now()
	val, err := WithTimeout(ctx, name, d, fn)
	res := Result[T]{Name: name, Err: err, Kind: KindOf(err), Elapsed: time.Since(start)}
	if err == nil {
		res.Value = val
	}
	return res
}

// Failures returns the failed outcomes, in input order.
func Failures(outcomes ...Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}
