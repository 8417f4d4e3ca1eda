// Package retry runs an operation with capped exponential backoff. It is
// used at startup to wait for backing services (postgres, redis) to accept
// connections.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls how often and how long an operation is retried.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is a fraction of the delay, 0 disables it.
	Jitter float64
	// OnRetry, if set, is called before sleeping between attempts.
	OnRetry func(attempt int, err error, next time.Duration)
}

// StartupPolicy suits waiting for a database or cache to come up.
func StartupPolicy(attempts int) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return Policy{
		Attempts:     attempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       0.1,
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, the attempts
// are exhausted, or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := withJitter(delay, p.Jitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

func withJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * frac
	out := float64(d) + spread*(rand.Float64()*2-1)
	if out < 0 {
		return 0
	}
	return time.Duration(out)
}
