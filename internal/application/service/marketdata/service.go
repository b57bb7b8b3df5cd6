package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
)

const DefaultLimit = 1000

var (
	ErrInvalidLimit  = errors.New("limit must be positive")
	ErrInvalidClass  = errors.New("invalid asset class")
	ErrSymbolMissing = errors.New("symbol is required")
)

type Service struct {
	repo interfaces.RecordRepository
}

func NewService(repo interfaces.RecordRepository) *Service {
	return &Service{repo: repo}
}

// Symbols returns the catalog of supported symbols for class in display order.
func (s *Service) Symbols(class ohlcv.AssetClass) ([]string, error) {
	if !class.IsValid() {
		return nil, ErrInvalidClass
	}
	return ohlcv.Symbols(class), nil
}

// GetRecords returns stored records of symbol, newest first. Zero from/to leave that side open.
func (s *Service) GetRecords(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time, limit int) ([]ohlcv.Record, error) {
	if !class.IsValid() {
		return nil, ErrInvalidClass
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, ErrSymbolMissing
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		from, to = to, from
	}
	return s.repo.Query(ctx, class, ohlcv.Query{
		Symbol: symbol,
		From:   from,
		To:     to,
		Limit:  limit,
	})
}

func (s *Service) Stats(ctx context.Context) (map[ohlcv.AssetClass]ohlcv.Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) Close() {
	s.repo.Close()
}
