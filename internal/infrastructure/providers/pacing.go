package providers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pacer blocks before an upstream request to stay under provider rate limits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay waits the same duration before every request. Zero disables the wait.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy returns a fresh backoff schedule for one fetch.
type RetryPolicy func() backoff.BackOff

// ConstantRetry allows at most attempts requests in total with a fixed wait in between.
func ConstantRetry(interval time.Duration, attempts int) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1))
	}
}
