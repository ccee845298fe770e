package util

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds how often and how long an operation against the store is retried.
type RetryPolicy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
	// Permanent reports errors that must not be retried.
	Permanent func(err error) bool
}

// Retry calls fn until it succeeds, the attempts are used up, fn returns a permanent error
// or ctx is done. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Max < policy.Min {
		policy.Max = policy.Min
	}

	b := &backoff.Backoff{
		Min:    policy.Min,
		Max:    policy.Max,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if policy.Permanent != nil && policy.Permanent(err) {
			return err
		}
		if attempt == policy.Attempts {
			break
		}

		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}

	return err
}
