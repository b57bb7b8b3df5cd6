package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-backfill/internal/config"
)

func TestNewProviders(t *testing.T) {
	primary, fallback := NewProviders(config.ProvidersConfig{
		CoinGeckoBaseURL:     "http://coingecko.test",
		YahooBaseURL:         "http://yahoo.test",
		HTTPTimeout:          time.Second,
		FallbackRetryBackoff: time.Millisecond,
		FallbackMaxAttempts:  2,
	}, logrus.New())

	require.NotNil(t, primary)
	require.NotNil(t, fallback)
	assert.Equal(t, "coingecko", primary.Name())
	assert.Equal(t, "yahoo", fallback.Name())
	assert.True(t, primary.Supports("BTC-USD"))
	assert.False(t, primary.Supports("MC.PA"))
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "sqlite"}})
	assert.Error(t, err)
}
