// Package retry runs a task under the scheduler policy: a bounded number of
// attempts, exponential backoff between them and a hard deadline per attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	// MaxDuration is the deadline applied to each attempt; zero means none.
	MaxDuration time.Duration
	// Sleep waits between attempts; nil uses a timer bound to ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is two attempts, backoff from 5s capped at 60s, 600s per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		MinBackoff:  5 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxDuration: 600 * time.Second,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the wait after the given 1-based attempt: MinBackoff * 2^(attempt-1), capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.MinBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Do calls fn until it succeeds, returns a permanent error, or attempts run out.
// Each attempt gets its own context bounded by MaxDuration.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.runAttempt(ctx, attempt, fn)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		if sleepErr := p.sleep(ctx, p.Backoff(attempt)); sleepErr != nil {
			return fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}

	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func (p Policy) runAttempt(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if p.MaxDuration <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.MaxDuration)
	defer cancel()
	return fn(attemptCtx, attempt)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
