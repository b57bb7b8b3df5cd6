//go:build integration

package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
)

func TestIntegrationClickHouseRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("TEST_CLICKHOUSE_ADDR not set")
	}
	ctx := context.Background()
	repo, err := NewRepository(ctx, config.ClickHouseConfig{
		Addr:     addr,
		Database: "default",
		User:     "default",
		Password: os.Getenv("TEST_CLICKHOUSE_PASSWORD"),
	})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	require.NoError(t, repo.EnsureSchema(ctx))

	symbol := "CH-" + uuid.NewString()[:8]
	records := []ohlcv.Record{
		{Symbol: symbol, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Symbol: symbol, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1.5, High: 3, Low: 1, Close: 2.5},
	}
	n, err := repo.BulkWrite(ctx, ohlcv.ClassCrypto, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.Query(ctx, ohlcv.ClassCrypto, ohlcv.Query{Symbol: symbol, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Timestamp.Day())
	assert.Equal(t, records[1].ID, got[0].ID)
}
