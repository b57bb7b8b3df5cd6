package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-backfill/internal/domain/interfaces"
	"marketdata-backfill/internal/infrastructure/providers"
)

// Three Paris sessions, stamped at the 09:00 CET open (UTC+1).
const chartFixture = `{"chart":{"result":[{
	"meta":{"symbol":"MC.PA","gmtoffset":3600,"exchangeTimezoneName":"Europe/Paris"},
	"timestamp":[1704182400,1704268800,1704355200],
	"indicators":{"quote":[{
		"open":[800.5,805.0,810.1],
		"high":[812.0,811.3,815.9],
		"low":[798.2,801.0,806.4],
		"close":[810.0,806.2,814.7],
		"volume":[412345,398120,377004]
	}]}
}],"error":null}}`

const chartWithNulls = `{"chart":{"result":[{
	"meta":{"symbol":"OR.PA","gmtoffset":3600},
	"timestamp":[1704182400,1704268800,1704355200],
	"indicators":{"quote":[{
		"open":[420.0,null,425.0],
		"high":[425.0,null,430.0],
		"low":[418.0,null,421.0],
		"close":[423.0,null,428.0],
		"volume":[1000,null,null]
	}]}
}],"error":null}}`

const chartEmpty = `{"chart":{"result":[{"meta":{"symbol":"SAN.PA","gmtoffset":3600},"indicators":{"quote":[{}]}}],"error":null}}`

func instantOptions() []Option {
	return []Option{
		WithPacer(providers.FixedDelay(0)),
		WithRetryPolicy(providers.ConstantRetry(0, 3)),
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base := []Option{WithBaseURL(server.URL), WithHTTPClient(server.Client())}
	return NewClient(append(append(base, instantOptions()...), opts...)...)
}

func TestFetchParsesChart(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/MC.PA", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		assert.Equal(t, "1704412800", r.URL.Query().Get("period2"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(chartFixture))
	})

	bars, err := client.Fetch(context.Background(), "MC.PA", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	first := bars[0]
	assert.Equal(t, 800.5, first.Open)
	assert.Equal(t, 812.0, first.High)
	assert.Equal(t, 798.2, first.Low)
	assert.Equal(t, 810.0, first.Close)
	assert.Equal(t, 412345.0, first.Volume)

	y, m, d := first.Timestamp.Date()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.January, m)
	assert.Equal(t, 2, d)
	_, offset := first.Timestamp.Zone()
	assert.Equal(t, 3600, offset)
}

func TestFetchLocalDayFollowsExchangeOffset(t *testing.T) {
	// 23:30 UTC on Jan 1 is already Jan 2 in Paris.
	const late = `{"chart":{"result":[{
		"meta":{"gmtoffset":3600},
		"timestamp":[1704151800],
		"indicators":{"quote":[{"open":[1],"high":[2],"low":[0.5],"close":[1.5],"volume":[10]}]}
	}],"error":null}}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(late))
	})

	bars, err := client.Fetch(context.Background(), "AIR.PA", time.Now().AddDate(0, 0, -3), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 2, bars[0].Timestamp.Day())
	assert.Equal(t, 2, bars[0].ToRecord("AIR.PA").Timestamp.Day())
}

func TestFetchSkipsNullRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartWithNulls))
	})

	bars, err := client.Fetch(context.Background(), "OR.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1000.0, bars[0].Volume)
	assert.Equal(t, 428.0, bars[1].Close)
	assert.Zero(t, bars[1].Volume, "missing volume reads as zero")
}

func TestFetchExhaustsAttemptsOnEmpty(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(chartEmpty))
	})

	bars, err := client.Fetch(context.Background(), "SAN.PA", time.Now().AddDate(0, 0, -5), time.Now())
	assert.Nil(t, bars)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNoData)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchExhaustedKeepsLastCause(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Fetch(context.Background(), "TTE.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNoData)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchRecoversOnSecondAttempt(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chartFixture))
	})

	bars, err := client.Fetch(context.Background(), "MC.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchChartError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}, WithRetryPolicy(providers.ConstantRetry(0, 1)))

	_, err := client.Fetch(context.Background(), "XX.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

type countingPacer struct {
	calls int32
}

func (p *countingPacer) Wait(ctx context.Context) error {
	atomic.AddInt32(&p.calls, 1)
	return ctx.Err()
}

func TestFetchPacesEveryAttempt(t *testing.T) {
	pacer := &countingPacer{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartEmpty))
	}, WithPacer(pacer))

	_, err := client.Fetch(context.Background(), "CA.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&pacer.calls))
}

func TestFetchStopsOnCanceledContext(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, WithPacer(providers.FixedDelay(time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "BNP.PA", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, atomic.LoadInt32(&hits))
}
