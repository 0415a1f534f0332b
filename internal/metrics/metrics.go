// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkwell"

var (
	// DiffComputeDuration measures diff computation latency.
	DiffComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "diff",
		Name:      "compute_duration_seconds",
		Help:      "Time spent computing character diffs",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	// SuggestionsTotal counts suggestion requests.
	// Labels: status (success, validation_error, provider_error, error)
	SuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestions",
		Name:      "requests_total",
		Help:      "Total suggestion requests by outcome",
	}, []string{"status"})

	// SuggestionOptionsDiscarded counts generated options dropped before persistence.
	// Labels: reason (empty_after, over_limit)
	SuggestionOptionsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestions",
		Name:      "options_discarded_total",
		Help:      "Generated options discarded before persistence",
	}, []string{"reason"})

	// ProviderCallDuration measures calls to external model providers.
	// Labels: operation (embed, generate, retrieve), status (success, error)
	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "call_duration_seconds",
		Help:      "External provider call latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation", "status"})

	// VersionTransitionsTotal counts version state machine transitions.
	// Labels: transition (create, apply, revert), status (success, conflict, error)
	VersionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "versions",
		Name:      "transitions_total",
		Help:      "Version transitions by kind and outcome",
	}, []string{"transition", "status"})

	// IndexJobsTotal counts processed index jobs.
	// Labels: status (completed, retried, released, failed)
	IndexJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "jobs_total",
		Help:      "Index jobs processed by outcome",
	}, []string{"status"})

	// ChunksIndexed counts chunks written by the indexer.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "chunks_total",
		Help:      "Chunks embedded and stored",
	})
)

// ObserveProviderCall records the latency of one provider call.
func ObserveProviderCall(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderCallDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
