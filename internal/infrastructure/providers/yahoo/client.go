package yahoo

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

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/domain/interfaces"
	"marketdata-backfill/internal/infrastructure/metrics"
	"marketdata-backfill/internal/infrastructure/providers"
)

const (
	ProviderName = "yahoo"

	defaultBaseURL      = "https://query1.finance.yahoo.com"
	defaultHTTPTimeout  = 15 * time.Second
	defaultPreDelay     = 500 * time.Millisecond
	defaultRetryBackoff = 2 * time.Second
	defaultMaxAttempts  = 3

	// The chart endpoint rejects requests without a browser-like agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Client reads daily bars from the Yahoo Finance chart API. Each request is paced and the
// whole fetch is retried on failure or on an empty answer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      providers.Pacer
	retry      providers.RetryPolicy
	logger     logrus.FieldLogger
}

var _ interfaces.PriceProvider = (*Client)(nil)

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

func WithPacer(p providers.Pacer) Option {
	return func(c *Client) {
		if p != nil {
			c.pacer = p
		}
	}
}

func WithRetryPolicy(p providers.RetryPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.retry = p
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

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		pacer:      providers.FixedDelay(defaultPreDelay),
		retry:      providers.ConstantRetry(defaultRetryBackoff, defaultMaxAttempts),
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return ProviderName
}

// Fetch returns daily bars for [from, to). When every attempt fails or comes back empty the
// error wraps interfaces.ErrNoData together with the last cause.
func (c *Client) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	var (
		bars    []ohlcv.Bar
		attempt int
	)
	op := func() error {
		attempt++
		if err := c.pacer.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		got, err := c.fetchOnce(ctx, symbol, from, to)
		if err != nil {
			metrics.ProviderRequest(ProviderName, metrics.OutcomeError)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if len(got) == 0 {
			metrics.ProviderRequest(ProviderName, metrics.OutcomeEmpty)
			return interfaces.ErrNoData
		}
		metrics.ProviderRequest(ProviderName, metrics.OutcomeOK)
		bars = got
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":  symbol,
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("yahoo attempt failed, retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(c.retry(), ctx), notify)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":   symbol,
			"attempts": attempt,
		}).Warn("yahoo returned no data")
		if errors.Is(err, interfaces.ErrNoData) {
			return nil, fmt.Errorf("yahoo: %s after %d attempts: %w", symbol, attempt, err)
		}
		return nil, fmt.Errorf("yahoo: %s after %d attempts: %w: %w", symbol, attempt, interfaces.ErrNoData, err)
	}
	return bars, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
		Timezone  string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) fetchOnce(ctx context.Context, symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	endpoint, err := url.Parse(c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo: build url: %w", err)
	}
	q := endpoint.Query()
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo: read response: %w", err)
	}

	var payload chartResponse
	decodeErr := json.Unmarshal(body, &payload)
	if decodeErr == nil && payload.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yahoo: http status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo: decode response: %w", decodeErr)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}
	return parseBars(payload.Chart.Result[0]), nil
}

// parseBars zips the column arrays into bars stamped in the exchange's local offset, so the
// calendar day is the trading day. Rows with a missing price are skipped.
func parseBars(res chartResult) []ohlcv.Bar {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	quote := res.Indicators.Quote[0]
	loc := time.FixedZone(res.Meta.Timezone, res.Meta.GMTOffset)

	bars := make([]ohlcv.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		open, okO := at(quote.Open, i)
		high, okH := at(quote.High, i)
		low, okL := at(quote.Low, i)
		closePrice, okC := at(quote.Close, i)
		if !okO || !okH || !okL || !okC {
			continue
		}
		volume, _ := at(quote.Volume, i)
		bars = append(bars, ohlcv.Bar{
			Timestamp: time.Unix(ts, 0).In(loc),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return bars
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}
