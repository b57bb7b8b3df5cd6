package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedDelayZeroReturnsImmediately(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(0).Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFixedDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := FixedDelay(time.Hour).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixedDelayWaits(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(20*time.Millisecond).Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestConstantRetryCapsAttempts(t *testing.T) {
	calls := 0
	err := backoff.Retry(func() error {
		calls++
		return errors.New("boom")
	}, ConstantRetry(0, 3)())

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestConstantRetryAtLeastOneAttempt(t *testing.T) {
	calls := 0
	_ = backoff.Retry(func() error {
		calls++
		return errors.New("boom")
	}, ConstantRetry(0, 0)())

	assert.Equal(t, 1, calls)
}
