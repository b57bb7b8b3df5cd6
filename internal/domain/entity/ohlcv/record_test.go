package ohlcv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetClass(t *testing.T) {
	for in, want := range map[string]AssetClass{
		"crypto":  ClassCrypto,
		"Cryptos": ClassCrypto,
		" stock ": ClassStock,
		"STOCKS":  ClassStock,
	} {
		got, err := ParseAssetClass(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseAssetClass("bonds")
	assert.Error(t, err)
	assert.False(t, AssetClass("bonds").IsValid())
}

func TestDayUsesOwnLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	late := time.Date(2024, 1, 2, 0, 30, 0, 0, paris)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Day(late))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Day(late.UTC()))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "2024-2-1", "29/02/2024", "2023-02-29"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestBarToRecord(t *testing.T) {
	bar := Bar{
		Timestamp: time.Date(2024, 3, 5, 17, 35, 0, 0, time.UTC),
		Open:      10, High: 12, Low: 9, Close: 11, Volume: 0,
	}
	rec := bar.ToRecord("ETH-USD")
	assert.Equal(t, "ETH-USD", rec.Symbol)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, 11.0, rec.Close)
	assert.Zero(t, rec.Volume)
}

func TestSymbolsCatalog(t *testing.T) {
	crypto := Symbols(ClassCrypto)
	require.Len(t, crypto, 10)
	assert.Equal(t, "BTC-USD", crypto[0])
	assert.Equal(t, "AVAX-USD", crypto[9])

	stocks := Symbols(ClassStock)
	require.Len(t, stocks, 15)
	assert.Equal(t, "MC.PA", stocks[0])
	assert.Equal(t, "UL.PA", stocks[14])

	assert.Nil(t, Symbols("bonds"))

	crypto[0] = "changed"
	assert.Equal(t, "BTC-USD", Symbols(ClassCrypto)[0], "callers get a copy")

	for _, s := range Symbols(ClassCrypto) {
		assert.Contains(t, CoinGeckoIDs, s)
	}
}
