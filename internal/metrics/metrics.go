// Package metrics provides Prometheus metrics for the medqa pipeline
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Query metrics
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	QueriesInFlight prometheus.Gauge

	// Model service metrics
	EmbeddingCallsTotal  *prometheus.CounterVec
	GenerationCallsTotal *prometheus.CounterVec
	RetriesTotal         *prometheus.CounterVec

	// Index metrics
	IndexChunks      prometheus.Gauge
	IndexRecords     prometheus.Gauge
	IndexBuildsTotal *prometheus.CounterVec
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medqa_queries_total",
			Help: "Total number of queries by outcome",
		},
		[]string{"outcome"},
	)

	m.QueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medqa_query_duration_seconds",
			Help:    "End-to-end query duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	m.QueriesInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "medqa_queries_in_flight",
			Help: "Number of queries currently being processed",
		},
	)

	m.EmbeddingCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medqa_embedding_calls_total",
			Help: "Total number of embedding service calls by status",
		},
		[]string{"status"},
	)

	m.GenerationCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medqa_generation_calls_total",
			Help: "Total number of language model calls by status",
		},
		[]string{"status"},
	)

	m.RetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medqa_retries_total",
			Help: "Total number of retried model service calls",
		},
		[]string{"service"},
	)

	m.IndexChunks = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "medqa_index_chunks",
			Help: "Number of chunks in the loaded index",
		},
	)

	m.IndexRecords = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "medqa_index_records",
			Help: "Number of corpus records in the loaded index",
		},
	)

	m.IndexBuildsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medqa_index_builds_total",
			Help: "Total number of index builds by status",
		},
		[]string{"status"},
	)

	return m
}

// Handler returns the HTTP handler exposing this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// QueryStarted marks a query in flight and returns a func that records its outcome.
func (m *Metrics) QueryStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.QueriesInFlight.Inc()
	return func(outcome string) {
		m.QueriesInFlight.Dec()
		m.QueriesTotal.WithLabelValues(outcome).Inc()
		m.QueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}

// EmbeddingCall records one embedding service call.
func (m *Metrics) EmbeddingCall(err error) {
	if m == nil {
		return
	}
	m.EmbeddingCallsTotal.WithLabelValues(status(err)).Inc()
}

// GenerationCall records one language model call.
func (m *Metrics) GenerationCall(err error) {
	if m == nil {
		return
	}
	m.GenerationCallsTotal.WithLabelValues(status(err)).Inc()
}

// Retry records a retried call to service ("embedding" or "generation").
func (m *Metrics) Retry(service string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(service).Inc()
}

// IndexLoaded sets the index size gauges.
func (m *Metrics) IndexLoaded(records, chunks int) {
	if m == nil {
		return
	}
	m.IndexRecords.Set(float64(records))
	m.IndexChunks.Set(float64(chunks))
}

// IndexBuilt records an index build.
func (m *Metrics) IndexBuilt(err error) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
