// Package retry wraps exponential backoff for outbound calls such as
// webhook deliveries.
package retry

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// jitter is the +-fraction applied to every backoff interval.
const jitter = 0.25

// Permanent wraps err so that Do will not retry it. Do returns the
// unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn up to maxAttempts times. The first retry waits about
// baseDelay and every further one doubles it. It stops early when fn
// succeeds, returns a Permanent error, or ctx is cancelled.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return backoff.Retry(fn, policy(ctx, maxAttempts, baseDelay))
}

func policy(ctx context.Context, maxAttempts int, baseDelay time.Duration) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = baseDelay
	exp.RandomizationFactor = jitter
	exp.Multiplier = 2
	exp.MaxInterval = baseDelay << uint(maxAttempts)
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)
}
