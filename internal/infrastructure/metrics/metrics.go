package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ohlcv"

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Upstream requests by provider and outcome (ok, empty, error).",
	}, []string{"provider", "outcome"})

	ingestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_runs_total",
		Help:      "Ingestion calls by asset class, serving source and outcome.",
	}, []string{"class", "source", "outcome"})

	recordsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_loaded_total",
		Help:      "Records committed to storage by asset class.",
	}, []string{"class"})

	ingestionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingestion_duration_seconds",
		Help:      "Wall time of one ingestion call including upstream waits.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"class"})
)

const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

func ProviderRequest(provider, outcome string) {
	providerRequests.WithLabelValues(provider, outcome).Inc()
}

// IngestionRun records one finished ingestion call.
func IngestionRun(class, source, outcome string, records int, seconds float64) {
	ingestionRuns.WithLabelValues(class, source, outcome).Inc()
	ingestionDuration.WithLabelValues(class).Observe(seconds)
	if records > 0 {
		recordsLoaded.WithLabelValues(class).Add(float64(records))
	}
}
