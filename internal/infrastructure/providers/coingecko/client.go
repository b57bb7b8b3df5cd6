package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
	"marketdata-backfill/internal/infrastructure/metrics"
)

const (
	ProviderName = "coingecko"

	defaultBaseURL     = "https://api.coingecko.com/api/v3"
	defaultHTTPTimeout = 15 * time.Second
	vsCurrency         = "usd"
	apiKeyHeader       = "x-cg-demo-api-key"
)

// Client reads the CoinGecko market_chart/range endpoint. It only serves symbols present in
// its identifier map.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	ids        map[string]string
	breaker    *gobreaker.CircuitBreaker
	settings   *gobreaker.Settings
	logger     logrus.FieldLogger
}

var _ interfaces.PriceProvider = (*Client)(nil)
var _ interfaces.SymbolSupporter = (*Client)(nil)

// Option configures a new Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithIDs replaces the symbol to coin id mapping.
func WithIDs(ids map[string]string) Option {
	return func(c *Client) {
		if ids != nil {
			c.ids = ids
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreakerSettings overrides the circuit breaker guarding upstream calls. A nil
// IsSuccessful keeps the default that ignores caller cancellation.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.settings = &st
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		ids:        ohlcv.CoinGeckoIDs,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	st := defaultBreakerSettings(c.logger)
	if c.settings != nil {
		st = *c.settings
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = countsAsSuccess
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)
	return c
}

// countsAsSuccess keeps requests abandoned by the caller out of the failure counts.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func defaultBreakerSettings(logger logrus.FieldLogger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:         ProviderName,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		IsSuccessful: countsAsSuccess,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// Supports reports whether symbol has a CoinGecko coin id.
func (c *Client) Supports(symbol string) bool {
	_, ok := c.ids[symbol]
	return ok
}

// Fetch returns daily bars resampled from the close-price series. Unmapped symbols fail with
// ErrUnsupportedSymbol before any request is made.
func (c *Client) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	id, ok := c.ids[symbol]
	if !ok {
		return nil, fmt.Errorf("coingecko: %s: %w", symbol, interfaces.ErrUnsupportedSymbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("coingecko: %s: %w", symbol, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchPrices(ctx, id, from, to)
	})
	if err != nil {
		if IsOpenCircuit(err) {
			c.logger.WithField("symbol", symbol).Debug("coingecko circuit open, request skipped")
			return nil, fmt.Errorf("coingecko: %s: %w", symbol, err)
		}
		metrics.ProviderRequest(ProviderName, metrics.OutcomeError)
		return nil, err
	}

	bars := Resample(result.([]PricePoint))
	if len(bars) == 0 {
		metrics.ProviderRequest(ProviderName, metrics.OutcomeEmpty)
		return nil, nil
	}
	metrics.ProviderRequest(ProviderName, metrics.OutcomeOK)
	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"coin":   id,
		"bars":   len(bars),
	}).Debug("coingecko bars resampled")
	return bars, nil
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

func (c *Client) fetchPrices(ctx context.Context, id string, from, to time.Time) ([]PricePoint, error) {
	endpoint, err := url.Parse(c.baseURL + "/coins/" + url.PathEscape(id) + "/market_chart/range")
	if err != nil {
		return nil, fmt.Errorf("coingecko: build url: %w", err)
	}
	q := endpoint.Query()
	q.Set("vs_currency", vsCurrency)
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("coingecko: http status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var payload marketChartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("coingecko: decode response: %w", err)
	}

	points := make([]PricePoint, 0, len(payload.Prices))
	for _, p := range payload.Prices {
		points = append(points, PricePoint{
			At:    time.UnixMilli(int64(p[0])).UTC(),
			Price: p[1],
		})
	}
	return points, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// IsOpenCircuit reports whether err came from the breaker refusing a call.
func IsOpenCircuit(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
