// Package retry runs a fallible operation with backoff between attempts.
//
// It is independent of any cache key and is shared by the single-entry and
// pagination paths. Cancellation of the context always wins: it is returned
// immediately and never reported as a failed attempt.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy controls [Do] and [Execute].
type Policy struct {
	// Attempts is the total number of calls, including the first.
	// Values ≤ 1 mean a single attempt.
	Attempts int

	// BaseDelay is the wait after the first failure.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay. Zero means uncapped.
	MaxDelay time.Duration

	// Backoff defaults to Exponential.
	Backoff Backoff

	// Jitter of 0.2 means ±20 % of the computed delay. Zero disables it.
	Jitter float64

	// OnAttemptError is called after every failed attempt, the last one
	// included, with the 1-indexed attempt number.
	OnAttemptError func(err error, attempt int)

	// Retryable reports whether err deserves another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool

	// Sleep waits d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Exhausted reports whether attempt was the last one the policy allows.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= max(p.Attempts, 1)
}

// Do calls fn until it succeeds, the attempts run out, Retryable rejects the
// error, or ctx is done. On cancellation the context error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}
		if p.OnAttemptError != nil {
			p.OnAttemptError(err, attempt)
		}
		if attempt == attempts {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return zero, serr
		}
	}

	return zero, nil
}

// Execute is Do for operations without a result.
func Execute(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// IsCancellation reports whether err stems from context cancellation or
// deadline expiry.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
