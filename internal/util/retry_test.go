package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")
	errPermanent := errors.New("permanent")

	testCases := []struct {
		name      string
		failures  int
		failWith  error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", failures: 0, failWith: errTransient, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, failWith: errTransient, attempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, failWith: errTransient, attempts: 3, wantCalls: 3, wantErr: errTransient},
		{name: "permanent error is not retried", failures: 5, failWith: errPermanent, attempts: 3, wantCalls: 1, wantErr: errPermanent},
		{name: "zero attempts still calls once", failures: 0, failWith: errTransient, attempts: 0, wantCalls: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			policy := RetryPolicy{
				Attempts:  tc.attempts,
				Min:       time.Millisecond,
				Max:       2 * time.Millisecond,
				Permanent: func(err error) bool { return errors.Is(err, errPermanent) },
			}

			err := Retry(context.Background(), policy, func(ctx context.Context) error {
				calls++
				if calls <= tc.failures {
					return tc.failWith
				}
				return nil
			})

			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected error %v, got %v", tc.wantErr, err)
			}
			if calls != tc.wantCalls {
				t.Errorf("expected %d calls, got %d", tc.wantCalls, calls)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, RetryPolicy{Attempts: 5, Min: time.Second}, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
