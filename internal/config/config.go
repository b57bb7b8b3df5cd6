package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnv             = "development"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultStoreDriver     = StoreDriverPostgres
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 30
	defaultLogLevel        = "info"

	defaultCoinGeckoBaseURL     = "https://api.coingecko.com/api/v3"
	defaultYahooBaseURL         = "https://query1.finance.yahoo.com"
	defaultProviderHTTPTimeout  = 15 * time.Second
	defaultFallbackPreDelay     = 500 * time.Millisecond
	defaultFallbackRetryBackoff = 2 * time.Second
	defaultFallbackMaxAttempts  = 3

	defaultClickHouseAddr     = "localhost:9000"
	defaultClickHouseDatabase = "default"
	defaultClickHouseUser     = "default"

	defaultRabbitExchange = "ohlcv.ingest"
	defaultRabbitQueue    = "ohlcv.ingest.jobs"
	defaultRabbitPrefetch = 1
)

const (
	StoreDriverPostgres   = "postgres"
	StoreDriverClickHouse = "clickhouse"
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env        string
	HTTP       HTTPConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Providers  ProvidersConfig
	RabbitMQ   RabbitMQConfig
	Log        LogConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// ClickHouseConfig stores ClickHouse native protocol parameters.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

// RedisConfig stores Redis connection parameters. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// ProvidersConfig configures the upstream price sources.
type ProvidersConfig struct {
	CoinGeckoBaseURL string
	CoinGeckoAPIKey  string
	YahooBaseURL     string
	HTTPTimeout      time.Duration

	// Fallback pacing: a fixed wait before each request, then a constant
	// backoff between attempts up to MaxAttempts requests in total.
	FallbackPreDelay     time.Duration
	FallbackRetryBackoff time.Duration
	FallbackMaxAttempts  int
}

// RabbitMQConfig configures the asynchronous ingestion queue.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// LogConfig controls the logrus output.
type LogConfig struct {
	Level string
	File  string
}

// Load builds Config from environment variables, reading a local .env file first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	driver := strings.ToLower(getString("STORE_DRIVER", defaultStoreDriver))
	dsn := os.Getenv("DATABASE_DSN")
	switch driver {
	case StoreDriverPostgres:
		if dsn == "" {
			return nil, errors.New("DATABASE_DSN is required")
		}
	case StoreDriverClickHouse:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	prefetch, err := getInt("RABBITMQ_PREFETCH", defaultRabbitPrefetch)
	if err != nil {
		return nil, fmt.Errorf("parse RABBITMQ_PREFETCH: %w", err)
	}

	return &Config{
		Env:   getString("APP_ENV", defaultEnv),
		HTTP:  HTTPConfig{Host: host, Port: port},
		Store: StoreConfig{Driver: driver},
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getString("CLICKHOUSE_ADDR", defaultClickHouseAddr),
			Database: getString("CLICKHOUSE_DB", defaultClickHouseDatabase),
			User:     getString("CLICKHOUSE_USER", defaultClickHouseUser),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		Providers: providers,
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getString("RABBITMQ_EXCHANGE", defaultRabbitExchange),
			Queue:    getString("RABBITMQ_QUEUE", defaultRabbitQueue),
			Prefetch: prefetch,
		},
		Log: LogConfig{
			Level: getString("LOG_LEVEL", defaultLogLevel),
			File:  os.Getenv("LOG_FILE"),
		},
	}, nil
}

func loadProviders() (ProvidersConfig, error) {
	timeout, err := getDuration("PROVIDER_HTTP_TIMEOUT", defaultProviderHTTPTimeout)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("parse PROVIDER_HTTP_TIMEOUT: %w", err)
	}
	preDelay, err := getDuration("FALLBACK_PRE_REQUEST_DELAY", defaultFallbackPreDelay)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("parse FALLBACK_PRE_REQUEST_DELAY: %w", err)
	}
	retryBackoff, err := getDuration("FALLBACK_RETRY_BACKOFF", defaultFallbackRetryBackoff)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("parse FALLBACK_RETRY_BACKOFF: %w", err)
	}
	attempts, err := getInt("FALLBACK_MAX_ATTEMPTS", defaultFallbackMaxAttempts)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("parse FALLBACK_MAX_ATTEMPTS: %w", err)
	}
	if attempts <= 0 {
		return ProvidersConfig{}, errors.New("FALLBACK_MAX_ATTEMPTS must be positive")
	}

	return ProvidersConfig{
		CoinGeckoBaseURL:     getString("COINGECKO_BASE_URL", defaultCoinGeckoBaseURL),
		CoinGeckoAPIKey:      os.Getenv("COINGECKO_API_KEY"),
		YahooBaseURL:         getString("YAHOO_BASE_URL", defaultYahooBaseURL),
		HTTPTimeout:          timeout,
		FallbackPreDelay:     preDelay,
		FallbackRetryBackoff: retryBackoff,
		FallbackMaxAttempts:  attempts,
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return parsed, nil
}
