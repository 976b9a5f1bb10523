// Package metrics exposes vigil's Prometheus metrics.
//
// All collectors live on a private registry so tests and multiple
// instances never collide on the global default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/vigil/internal/storage/types"
)

const namespace = "vigil"

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleLatency  prometheus.Histogram
	fetchLatency  *prometheus.HistogramVec
	invalidations *prometheus.CounterVec
	lastReading   prometheus.Gauge

	queries   *prometheus.CounterVec
	queryRows *prometheus.CounterVec

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_cycles_total",
			Help:      "Ingestion cycles by outcome.",
		}, []string{"outcome"}),
		cycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_cycle_seconds",
			Help:      "Duration of a full ingestion cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_seconds",
			Help:      "Latency of fetches from the external source.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Invalidation reasons assigned to ingested readings.",
		}, []string{"reason"}),
		lastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Time of the most recently saved reading.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		queryRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_rows_total",
			Help:      "Rows returned by queries.",
		}, []string{"dataset"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.cycles, m.cycleLatency, m.fetchLatency, m.invalidations, m.lastReading,
		m.queries, m.queryRows,
		m.requests, m.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// Ingestion
// =============================================================================

// CycleCompleted records the outcome and duration of one ingestion cycle.
func (m *Metrics) CycleCompleted(outcome string, took time.Duration) {
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleLatency.Observe(took.Seconds())
}

// FetchCompleted records one fetch from the external source.
func (m *Metrics) FetchCompleted(took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchLatency.WithLabelValues(result).Observe(took.Seconds())
}

// ReadingSaved records the time of a saved reading.
func (m *Metrics) ReadingSaved(r types.Reading) {
	m.lastReading.Set(float64(r.Time))
}

// Invalidated counts each reason assigned to a reading.
func (m *Metrics) Invalidated(reasons []types.ReasonCode) {
	for _, r := range reasons {
		m.invalidations.WithLabelValues(r.String()).Inc()
	}
}

// =============================================================================
// Query
// =============================================================================

// QueryCompleted records one query against a dataset.
func (m *Metrics) QueryCompleted(dataset string, rows int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queries.WithLabelValues(dataset, outcome).Inc()
	if err == nil {
		m.queryRows.WithLabelValues(dataset).Add(float64(rows))
	}
}

// =============================================================================
// HTTP
// =============================================================================

// RequestCompleted records one HTTP request.
func (m *Metrics) RequestCompleted(route string, code int, took time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(took.Seconds())
}
