package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	first := InitRegistry()
	second := InitRegistry()

	assert.NotNil(t, first)
	assert.Same(t, first, second)
}

func TestRecordScan(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(ScansTotal.WithLabelValues("timeout"))

	RecordScan("timeout", 30)

	assert.Equal(t, before+1, testutil.ToFloat64(ScansTotal.WithLabelValues("timeout")))
}

func TestRecordRunComplete(t *testing.T) {
	InitRegistry()
	RecordRunComplete(7, 12.5)
	assert.Equal(t, float64(7), testutil.ToFloat64(LastRunMatches))
}

func TestRecordCacheLookup(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("disk", "hit"))

	RecordCacheLookup("disk", true)
	RecordCacheLookup("disk", false)

	assert.Equal(t, before+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("disk", "hit")))
}

func TestHandler(t *testing.T) {
	RecordRun("cli")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "screener_runs_total"))
}
