// Package metrics provides the Prometheus registry for screening runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "screener"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of screening runs by trigger",
	}, []string{"trigger"})

	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Per-stock scan outcomes by status (match, no_match, timeout, failed)",
	}, []string{"status"})

	PersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Result file append or rewrite failures",
	})

	BreakerTripsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_trips_total",
		Help:      "Circuit breaker transitions into the open state by upstream",
	}, []string{"upstream"})

	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Bar and universe cache lookups by layer and result",
	}, []string{"layer", "result"})
)

// Gauge metrics
var (
	LastRunMatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_matches",
		Help:      "Number of matches produced by the most recent run",
	})

	InFlightScans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "in_flight_scans",
		Help:      "Scans currently being evaluated by the worker pool",
	})
)

// Histogram metrics
var (
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of complete screening runs",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Wall time of a single stock scan including the bar fetch",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RunsTotal)
		registry.MustRegister(ScansTotal)
		registry.MustRegister(PersistFailuresTotal)
		registry.MustRegister(BreakerTripsTotal)
		registry.MustRegister(CacheLookupsTotal)

		registry.MustRegister(LastRunMatches)
		registry.MustRegister(InFlightScans)

		registry.MustRegister(RunDuration)
		registry.MustRegister(ScanDuration)
	})
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}

// RecordRun records the start of a run.
// trigger is one of: "cli", "api", "scheduler"
func RecordRun(trigger string) {
	RunsTotal.WithLabelValues(trigger).Inc()
}

// RecordScan records one finished scan.
func RecordScan(status string, durationSeconds float64) {
	ScansTotal.WithLabelValues(status).Inc()
	ScanDuration.Observe(durationSeconds)
}

// RecordRunComplete records the outcome of a finished run.
func RecordRunComplete(matches int, durationSeconds float64) {
	LastRunMatches.Set(float64(matches))
	RunDuration.Observe(durationSeconds)
}

// RecordPersistFailure records a failed result file write.
func RecordPersistFailure() {
	PersistFailuresTotal.Inc()
}

// RecordBreakerTrip records a breaker opening for upstream.
func RecordBreakerTrip(upstream string) {
	BreakerTripsTotal.WithLabelValues(upstream).Inc()
}

// RecordCacheLookup records a cache hit or miss on layer.
func RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(layer, result).Inc()
}
