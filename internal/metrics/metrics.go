// Package metrics exposes Prometheus collectors for enrichment and importance
// queries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a dedicated registry and the riskmap collectors. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	regionQueries     *prometheus.CounterVec
	regionDuration    *prometheus.HistogramVec
	enrichBatches     *prometheus.CounterVec
	importanceQueries *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered, plus the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		regionQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskmap_region_queries_total",
				Help: "Per-region prediction queries by outcome",
			},
			[]string{"model", "outcome"},
		),
		regionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskmap_region_query_duration_seconds",
				Help:    "Per-region prediction query duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"model"},
		),
		enrichBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskmap_enrich_batches_total",
				Help: "Completed enrichment passes",
			},
			[]string{"model"},
		),
		importanceQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskmap_importance_requests_total",
				Help: "Feature-importance queries by status",
			},
			[]string{"model", "status"},
		),
	}

	r.registry.MustRegister(
		r.regionQueries,
		r.regionDuration,
		r.enrichBatches,
		r.importanceQueries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRegion records one region query outcome and its duration.
func (r *Recorder) ObserveRegion(model, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.regionQueries.WithLabelValues(model, outcome).Inc()
	r.regionDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveBatch records a completed enrichment pass.
func (r *Recorder) ObserveBatch(model string) {
	if r == nil {
		return
	}
	r.enrichBatches.WithLabelValues(model).Inc()
}

// ObserveImportance records a feature-importance query. status is "ok" or "error".
func (r *Recorder) ObserveImportance(model, status string) {
	if r == nil {
		return
	}
	r.importanceQueries.WithLabelValues(model, status).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
