package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIngestionRunCountsRecords(t *testing.T) {
	before := testutil.ToFloat64(recordsLoaded.WithLabelValues("crypto"))

	IngestionRun("crypto", "coingecko", OutcomeOK, 4, 0.2)
	IngestionRun("crypto", "none", OutcomeEmpty, 0, 0.1)

	assert.Equal(t, before+4, testutil.ToFloat64(recordsLoaded.WithLabelValues("crypto")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ingestionRuns.WithLabelValues("crypto", "none", OutcomeEmpty)), 1.0)
}

func TestProviderRequest(t *testing.T) {
	before := testutil.ToFloat64(providerRequests.WithLabelValues("yahoo", OutcomeError))
	ProviderRequest("yahoo", OutcomeError)
	assert.Equal(t, before+1, testutil.ToFloat64(providerRequests.WithLabelValues("yahoo", OutcomeError)))
}
