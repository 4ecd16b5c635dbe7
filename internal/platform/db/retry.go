package db

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// RetryPolicy controls how repository calls are retried. Only idempotent
// statements (reads, keyed upserts) go through Retry.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Timeout bounds a single attempt. Zero disables the per-attempt timeout.
	Timeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

// Retry runs op with exponential backoff. Callers must translate "no rows"
// into a zero result inside op so that a missing entity is not retried.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	attempt := op
	if p.Timeout > 0 {
		t := timeout.New[T](timeout.Config{DefaultTimeout: p.Timeout})
		attempt = func(ctx context.Context) (T, error) {
			return t.Execute(ctx, p.Timeout, op)
		}
	}

	if p.MaxAttempts <= 1 {
		return attempt(ctx)
	}

	r := retry.New[T](retry.Config{
		MaxAttempts:   p.MaxAttempts,
		InitialDelay:  p.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	return r.Do(ctx, attempt)
}
