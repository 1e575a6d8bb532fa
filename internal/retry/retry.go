// Package retry runs calls to remote model services under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hyperjump/medqa/internal/config"
)

// Policy is a bounded retry budget. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds each individual attempt; zero means no per-attempt limit.
	AttemptTimeout time.Duration
}

// FromConfig builds a Policy from a retry config section and a per-attempt timeout.
func FromConfig(rc config.RetryConfig, attemptTimeout time.Duration) Policy {
	return Policy{
		MaxAttempts:    rc.MaxAttempts,
		InitialBackoff: rc.InitialBackoff,
		MaxBackoff:     rc.MaxBackoff,
		AttemptTimeout: attemptTimeout,
	}
}

// Backoff returns the delay before the given retry (1-based), without jitter.
func (p Policy) Backoff(retry int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < retry; i++ {
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

// OnRetry is called before sleeping ahead of a retry.
type OnRetry func(attempt int, backoff time.Duration, err error)

// Do calls fn until it succeeds, returns a non-retryable error, the budget is exhausted,
// or ctx is done. It returns the number of attempts made and the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryable func(error) bool, onRetry OnRetry) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			base := p.Backoff(attempt - 1)
			backoff := base + time.Duration(rand.Int63n(int64(base/4)+1))
			if onRetry != nil {
				onRetry(attempt, backoff, lastErr)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt - 1, lastErr
			case <-timer.C:
			}
		}

		lastErr = call(ctx, p.AttemptTimeout, fn)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		attemptTimedOut := p.AttemptTimeout > 0 && errors.Is(lastErr, context.DeadlineExceeded)
		if !attemptTimedOut && (retryable == nil || !retryable(lastErr)) {
			return attempt, lastErr
		}
	}
	return maxAttempts, lastErr
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
