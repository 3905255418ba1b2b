// Package metrics provides Prometheus metrics for entity scans
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entityscan"

// Document outcomes
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all Prometheus metrics for entityscan.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Document metrics
	DocumentsTotal   *prometheus.CounterVec
	DocumentDuration prometheus.Histogram
	DocumentBytes    prometheus.Histogram

	// Chunk and engine metrics
	ChunksTotal        prometheus.Counter
	SkippedChunksTotal prometheus.Counter
	EngineErrorsTotal  *prometheus.CounterVec
	EngineDuration     *prometheus.HistogramVec

	// Entity metrics
	EntitiesTotal     *prometheus.CounterVec
	ClippedSpansTotal prometheus.Counter
}

// New creates all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates all metrics and registers them with reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.DocumentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Total number of analyzed documents by outcome.",
		},
		[]string{"status"},
	)

	m.DocumentDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent analyzing one document.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.DocumentBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_size_bytes",
			Help:      "Size of analyzed documents in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	m.ChunksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of chunks submitted to the engine.",
		},
	)

	m.SkippedChunksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_chunks_total",
			Help:      "Chunks dropped after an engine failure.",
		},
	)

	m.EngineErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total number of failed engine calls.",
		},
		[]string{"engine"},
	)

	m.EngineDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Duration of engine calls in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"engine"},
	)

	m.EntitiesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Total number of reported entities by label.",
		},
		[]string{"label"},
	)

	m.ClippedSpansTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clipped_spans_total",
			Help:      "Entities whose end was clipped to their hit line.",
		},
	)

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDocument records the outcome of one document analysis
func (m *Metrics) RecordDocument(duration time.Duration, bytes int64, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.DocumentsTotal.WithLabelValues(status).Inc()
	m.DocumentDuration.Observe(duration.Seconds())
	if bytes >= 0 {
		m.DocumentBytes.Observe(float64(bytes))
	}
}

// RecordEngineCall records one engine invocation
func (m *Metrics) RecordEngineCall(engine string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ChunksTotal.Inc()
	m.EngineDuration.WithLabelValues(engine).Observe(duration.Seconds())
	if err != nil {
		m.EngineErrorsTotal.WithLabelValues(engine).Inc()
	}
}

// RecordSkippedChunk counts a chunk dropped after an engine failure
func (m *Metrics) RecordSkippedChunk() {
	if m == nil {
		return
	}
	m.SkippedChunksTotal.Inc()
}

// RecordEntity counts one reported entity
func (m *Metrics) RecordEntity(label string, clipped bool) {
	if m == nil {
		return
	}
	m.EntitiesTotal.WithLabelValues(label).Inc()
	if clipped {
		m.ClippedSpansTotal.Inc()
	}
}
