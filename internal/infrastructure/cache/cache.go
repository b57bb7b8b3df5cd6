package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
)

const (
	// Prefix starts every cached response key.
	Prefix = "cache:"
	// ScopeAll marks responses that span every asset class, such as /stats.
	ScopeAll = "all"

	scanCount = 100
)

// Key builds the cache key of a response. scope is an asset class or ScopeAll.
func Key(scope, method, path, rawQuery string) string {
	return fmt.Sprintf("%s%s:%s:%s?%s", Prefix, scope, method, path, rawQuery)
}

// Open connects to Redis. An empty address disables caching and returns a nil client.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Invalidator drops cached responses made stale by newly stored records. A nil client makes
// every call a no-op.
type Invalidator struct {
	client *redis.Client
	logger logrus.FieldLogger
}

func NewInvalidator(client *redis.Client, logger logrus.FieldLogger) *Invalidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Invalidator{client: client, logger: logger.WithField("component", "cache")}
}

// InvalidateClass deletes the responses of class together with the cross-class ones.
func (i *Invalidator) InvalidateClass(ctx context.Context, class ohlcv.AssetClass) (int, error) {
	if i == nil || i.client == nil {
		return 0, nil
	}
	deleted := 0
	for _, scope := range []string{class.String(), ScopeAll} {
		n, err := i.deleteMatching(ctx, Prefix+scope+":*")
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	i.logger.WithFields(logrus.Fields{
		"class": class.String(),
		"keys":  deleted,
	}).Debug("cache invalidated")
	return deleted, nil
}

func (i *Invalidator) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := i.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := i.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("delete cached keys: %w", err)
			}
			deleted += len(keys)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Loader runs one ingestion.
type Loader interface {
	Load(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Record, error)
}

// Wrap returns a Loader that invalidates the class after every load that stored records.
// Invalidation failures are logged and never fail the load.
func (i *Invalidator) Wrap(next Loader) Loader {
	return &invalidatingLoader{next: next, invalidator: i}
}

type invalidatingLoader struct {
	next        Loader
	invalidator *Invalidator
}

func (l *invalidatingLoader) Load(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Record, error) {
	records, err := l.next.Load(ctx, class, symbol, from, to)
	if err != nil || len(records) == 0 {
		return records, err
	}
	if _, cacheErr := l.invalidator.InvalidateClass(ctx, class); cacheErr != nil {
		l.invalidator.logger.WithError(cacheErr).WithField("symbol", symbol).Warn("cache invalidation failed")
	}
	return records, nil
}
