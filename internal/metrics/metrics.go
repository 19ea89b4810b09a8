// Package metrics exposes Prometheus counters for conversions, artifact
// requests, and reconcile runs. Each Collector owns its registry so tests
// never trip duplicate registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request result labels.
const (
	ResultHit       = "hit"
	ResultConverted = "converted"
	ResultError     = "error"
)

// Conversion and reconcile outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBusy    = "busy"
)

// Collector aggregates bindery's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	artifactRequests   *prometheus.CounterVec
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	reconcileRuns      *prometheus.CounterVec
	jobsInFlight       prometheus.Gauge
	catalogBooks       prometheus.Gauge
}

// NewCollector builds a collector backed by a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		artifactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bindery_artifact_requests_total",
			Help: "Artifact requests by result (hit, converted, error)",
		}, []string{"result"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bindery_conversions_total",
			Help: "Conversion invocations by backend and outcome",
		}, []string{"backend", "outcome"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bindery_conversion_duration_seconds",
			Help:    "Conversion wall time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"backend"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bindery_reconcile_runs_total",
			Help: "Reconcile runs by outcome",
		}, []string{"outcome"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bindery_jobs_in_flight",
			Help: "Conversion jobs currently running or queued",
		}),
		catalogBooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bindery_catalog_books",
			Help: "Active books in the cached catalog",
		}),
	}

	c.registry.MustRegister(
		c.artifactRequests,
		c.conversions,
		c.conversionDuration,
		c.reconcileRuns,
		c.jobsInFlight,
		c.catalogBooks,
	)
	return c
}

// Handler serves the collector's registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one artifact request with the given result label.
func (c *Collector) RecordRequest(result string) {
	c.artifactRequests.WithLabelValues(result).Inc()
}

// RecordConversion counts one backend invocation and its duration.
func (c *Collector) RecordConversion(backend, outcome string, duration time.Duration) {
	c.conversions.WithLabelValues(backend, outcome).Inc()
	c.conversionDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordReconcile counts one reconcile run.
func (c *Collector) RecordReconcile(outcome string) {
	c.reconcileRuns.WithLabelValues(outcome).Inc()
}

// JobStarted and JobFinished track the in-flight gauge.
func (c *Collector) JobStarted()  { c.jobsInFlight.Inc() }
func (c *Collector) JobFinished() { c.jobsInFlight.Dec() }

// SetCatalogSize publishes the active catalog size.
func (c *Collector) SetCatalogSize(count int) {
	c.catalogBooks.Set(float64(count))
}
