// Package retry provides a bounded retry combinator with pluggable backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy controls how Do retries.
type Policy struct {
	// MaxAttempts includes the first call. Values below 1 mean 1.
	MaxAttempts int
	// Backoff returns the wait before the next attempt. attempt is the
	// zero-based index of the attempt that just failed.
	Backoff func(attempt int, err error) time.Duration
	// Retryable decides whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Constant waits d between attempts.
func Constant(d time.Duration) func(int, error) time.Duration {
	return func(int, error) time.Duration { return d }
}

// Exponential waits base*2^attempt capped at limit.
func Exponential(base, limit time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		d := base << attempt
		if d <= 0 || d > limit {
			return limit
		}
		return d
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the context is
// done, or the attempt budget is spent. Non-retryable errors are returned as is;
// exhaustion wraps both ErrExhausted and the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return zero, fmt.Errorf("%w (last error: %w)", err, last)
			}
			return zero, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		last = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := Sleep(ctx, wait); err != nil {
			return zero, fmt.Errorf("%w (last error: %w)", err, last)
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
