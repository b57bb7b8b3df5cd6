package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
)

type stubLoader struct {
	records []ohlcv.Record
	err     error
	calls   int
}

func (s *stubLoader) Load(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Record, error) {
	s.calls++
	return s.records, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestKeyScopesByClass(t *testing.T) {
	assert.Equal(t, "cache:crypto:GET:/api/v1/data/crypto/BTC-USD?limit=5",
		Key(ohlcv.ClassCrypto.String(), "GET", "/api/v1/data/crypto/BTC-USD", "limit=5"))
	assert.Equal(t, "cache:all:GET:/api/v1/stats?", Key(ScopeAll, "GET", "/api/v1/stats", ""))
}

func TestOpenWithoutAddressDisablesCache(t *testing.T) {
	client, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestInvalidateWithoutClientIsNoop(t *testing.T) {
	n, err := NewInvalidator(nil, quietLogger()).InvalidateClass(context.Background(), ohlcv.ClassStock)
	require.NoError(t, err)
	assert.Zero(t, n)

	var nilInvalidator *Invalidator
	n, err = nilInvalidator.InvalidateClass(context.Background(), ohlcv.ClassStock)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWrapPassesResultsThrough(t *testing.T) {
	inv := NewInvalidator(nil, quietLogger())

	inner := &stubLoader{records: []ohlcv.Record{{Symbol: "BTC-USD"}, {Symbol: "BTC-USD"}}}
	records, err := inv.Wrap(inner).Load(context.Background(), ohlcv.ClassCrypto, "BTC-USD", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, inner.calls)

	boom := errors.New("store down")
	failing := &stubLoader{err: boom}
	_, err = inv.Wrap(failing).Load(context.Background(), ohlcv.ClassCrypto, "BTC-USD", time.Now(), time.Now())
	assert.ErrorIs(t, err, boom)
}
