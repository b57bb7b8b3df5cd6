//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
)

func TestIntegrationWrappedLoadInvalidatesClass(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Open(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cryptoKey := Key(ohlcv.ClassCrypto.String(), "GET", "/api/v1/data/crypto/BTC-USD", "")
	stockKey := Key(ohlcv.ClassStock.String(), "GET", "/api/v1/data/stock/MC.PA", "")
	statsKey := Key(ScopeAll, "GET", "/api/v1/stats", "")
	for _, key := range []string{cryptoKey, stockKey, statsKey} {
		require.NoError(t, client.Set(ctx, key, "[]", time.Minute).Err())
	}
	t.Cleanup(func() { _ = client.Del(ctx, cryptoKey, stockKey, statsKey).Err() })

	inner := &stubLoader{records: []ohlcv.Record{{Symbol: "BTC-USD"}}}
	_, err = NewInvalidator(client, quietLogger()).Wrap(inner).Load(ctx, ohlcv.ClassCrypto, "BTC-USD", time.Now(), time.Now())
	require.NoError(t, err)

	assert.Zero(t, client.Exists(ctx, cryptoKey).Val())
	assert.Zero(t, client.Exists(ctx, statsKey).Val())
	assert.Equal(t, int64(1), client.Exists(ctx, stockKey).Val())
}
