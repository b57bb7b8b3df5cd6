package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
	"marketdata-backfill/internal/infrastructure/metrics"
)

var ErrInvalidRequest = errors.New("invalid ingestion request")

// IngestionError reports a load whose records could not be committed. Nothing from the
// batch is stored when it is returned.
type IngestionError struct {
	Class  ohlcv.AssetClass
	Symbol string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s %s: persist records: %v", e.Class, e.Symbol, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

const (
	stateTryPrimary  = "try_primary"
	statePrimaryOK   = "primary_ok"
	stateTryFallback = "try_fallback"
	stateFallbackOK  = "fallback_ok"
	stateEmpty       = "empty"
	statePersist     = "persist"
	stateDone        = "done"
	stateRolledBack  = "rolled_back"

	sourceNone = "none"
)

// Service loads daily bars for one symbol from the upstream providers and stores them.
// Crypto symbols known to the primary provider are tried there first; everything else, and
// any crypto symbol the primary could not serve, goes to the fallback exactly once.
type Service struct {
	primary  interfaces.PriceProvider
	fallback interfaces.PriceProvider
	repo     interfaces.RecordRepository
	logger   logrus.FieldLogger
}

// NewService wires the providers and repository. primary may be nil.
func NewService(primary, fallback interfaces.PriceProvider, repo interfaces.RecordRepository, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		repo:     repo,
		logger:   logger.WithField("component", "ingestion"),
	}
}

// Load fetches [from, to) for symbol, writes the records in one batch and returns them.
// An empty slice with a nil error means no provider had data; nothing was written.
func (s *Service) Load(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Record, error) {
	symbol = strings.TrimSpace(symbol)
	if err := validate(class, symbol, from, to); err != nil {
		return nil, err
	}

	started := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"class":  class.String(),
		"symbol": symbol,
		"from":   from.Format(ohlcv.DateLayout),
		"to":     to.Format(ohlcv.DateLayout),
	})

	bars, source := s.fetch(ctx, log, class, symbol, from, to)
	if err := ctx.Err(); err != nil {
		metrics.IngestionRun(class.String(), sourceNone, metrics.OutcomeError, 0, time.Since(started).Seconds())
		return nil, err
	}
	if len(bars) == 0 {
		log.WithField("state", stateEmpty).Info("no data available from any provider")
		metrics.IngestionRun(class.String(), sourceNone, metrics.OutcomeEmpty, 0, time.Since(started).Seconds())
		return []ohlcv.Record{}, nil
	}

	records := make([]ohlcv.Record, 0, len(bars))
	for _, bar := range bars {
		records = append(records, bar.ToRecord(symbol))
	}

	log.WithFields(logrus.Fields{"state": statePersist, "source": source, "records": len(records)}).Debug("writing records")
	written, err := s.repo.BulkWrite(ctx, class, records)
	if err != nil {
		log.WithError(err).WithField("state", stateRolledBack).Error("persist records failed")
		metrics.IngestionRun(class.String(), source, metrics.OutcomeError, 0, time.Since(started).Seconds())
		return nil, &IngestionError{Class: class, Symbol: symbol, Err: err}
	}

	log.WithFields(logrus.Fields{
		"state":   stateDone,
		"source":  source,
		"records": written,
		"elapsed": time.Since(started).String(),
	}).Info("ingestion finished")
	metrics.IngestionRun(class.String(), source, metrics.OutcomeOK, written, time.Since(started).Seconds())
	return records, nil
}

func validate(class ohlcv.AssetClass, symbol string, from, to time.Time) error {
	switch {
	case !class.IsValid():
		return fmt.Errorf("%w: unknown asset class %q", ErrInvalidRequest, class)
	case symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	case from.IsZero() || to.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRequest)
	case from.After(to):
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidRequest,
			from.Format(ohlcv.DateLayout), to.Format(ohlcv.DateLayout))
	}
	return nil
}

// fetch returns the bars of exactly one provider along with its name. Provider errors are
// logged and read as "no data".
func (s *Service) fetch(ctx context.Context, log logrus.FieldLogger, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Bar, string) {
	if class == ohlcv.ClassCrypto && s.primaryServes(symbol) {
		log.WithField("state", stateTryPrimary).Debug("requesting primary provider")
		bars, err := s.primary.Fetch(ctx, symbol, from, to)
		switch {
		case err != nil:
			log.WithError(err).WithField("provider", s.primary.Name()).Warn("primary provider failed, falling back")
		case len(bars) > 0:
			log.WithFields(logrus.Fields{"state": statePrimaryOK, "bars": len(bars)}).Info("primary provider served request")
			return bars, s.primary.Name()
		default:
			log.WithField("provider", s.primary.Name()).Info("primary provider returned no data, falling back")
		}
		if ctx.Err() != nil {
			return nil, sourceNone
		}
	}

	if s.fallback == nil {
		return nil, sourceNone
	}
	log.WithField("state", stateTryFallback).Debug("requesting fallback provider")
	bars, err := s.fallback.Fetch(ctx, symbol, from, to)
	if err != nil {
		entry := log.WithError(err).WithField("provider", s.fallback.Name())
		if errors.Is(err, interfaces.ErrNoData) {
			entry.Info("fallback provider returned no data")
		} else {
			entry.Warn("fallback provider failed")
		}
		return nil, sourceNone
	}
	if len(bars) == 0 {
		return nil, sourceNone
	}
	log.WithFields(logrus.Fields{"state": stateFallbackOK, "bars": len(bars)}).Info("fallback provider served request")
	return bars, s.fallback.Name()
}

func (s *Service) primaryServes(symbol string) bool {
	if s.primary == nil {
		return false
	}
	if sup, ok := s.primary.(interfaces.SymbolSupporter); ok {
		return sup.Supports(symbol)
	}
	return true
}
