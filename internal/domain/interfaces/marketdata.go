package interfaces

import (
	"context"
	"errors"
	"time"

	"marketdata-backfill/internal/domain/entity/ohlcv"
)

var (
	// ErrUnsupportedSymbol is returned by a provider that has no mapping for the requested symbol.
	ErrUnsupportedSymbol = errors.New("symbol not supported by provider")
	// ErrNoData means the provider answered but had no bars for the range.
	ErrNoData = errors.New("no data available")
)

// PriceProvider fetches daily bars for a symbol from one upstream source.
// Implementations report failures as errors and never write to storage.
type PriceProvider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, from, to time.Time) ([]ohlcv.Bar, error)
}

// SymbolSupporter is implemented by providers that only serve a fixed whitelist.
type SymbolSupporter interface {
	Supports(symbol string) bool
}

// RecordRepository owns stored OHLCV records. BulkWrite is all-or-nothing.
type RecordRepository interface {
	BulkWrite(ctx context.Context, class ohlcv.AssetClass, records []ohlcv.Record) (int, error)
	Query(ctx context.Context, class ohlcv.AssetClass, q ohlcv.Query) ([]ohlcv.Record, error)
	Stats(ctx context.Context) (map[ohlcv.AssetClass]ohlcv.Stats, error)
	Close()
}
