package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	appingestion "marketdata-backfill/internal/application/service/ingestion"
	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/interfaces"
	inframarketdata "marketdata-backfill/internal/infrastructure/marketdata"
	"marketdata-backfill/internal/infrastructure/marketdata/clickhouse"
	"marketdata-backfill/internal/infrastructure/providers"
	"marketdata-backfill/internal/infrastructure/providers/coingecko"
	"marketdata-backfill/internal/infrastructure/providers/yahoo"
)

// Store is a record repository that can create its own schema.
type Store interface {
	interfaces.RecordRepository
	EnsureSchema(ctx context.Context) error
}

// OpenStore connects the repository selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		repo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres repo: %w", err)
		}
		return repo, nil
	case config.StoreDriverClickHouse:
		repo, err := clickhouse.NewRepository(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("init clickhouse repo: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// NewProviders builds the primary and fallback price sources from configuration.
func NewProviders(cfg config.ProvidersConfig, logger logrus.FieldLogger) (*coingecko.Client, *yahoo.Client) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	primary := coingecko.NewClient(
		coingecko.WithHTTPClient(httpClient),
		coingecko.WithBaseURL(cfg.CoinGeckoBaseURL),
		coingecko.WithAPIKey(cfg.CoinGeckoAPIKey),
		coingecko.WithLogger(logger.WithField("provider", coingecko.ProviderName)),
	)
	fallback := yahoo.NewClient(
		yahoo.WithHTTPClient(httpClient),
		yahoo.WithBaseURL(cfg.YahooBaseURL),
		yahoo.WithPacer(providers.FixedDelay(cfg.FallbackPreDelay)),
		yahoo.WithRetryPolicy(providers.ConstantRetry(cfg.FallbackRetryBackoff, cfg.FallbackMaxAttempts)),
		yahoo.WithLogger(logger.WithField("provider", yahoo.ProviderName)),
	)
	return primary, fallback
}

// NewIngestion wires the ingestion service over repo.
func NewIngestion(cfg *config.Config, repo interfaces.RecordRepository, logger logrus.FieldLogger) *appingestion.Service {
	primary, fallback := NewProviders(cfg.Providers, logger)
	return appingestion.NewService(primary, fallback, repo, logger)
}
