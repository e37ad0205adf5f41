// Package metrics provides Prometheus metrics for the enrichment engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetchesTotal counts adapter fetches by outcome.
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Total number of source adapter fetches by status and failure kind",
		},
		[]string{"source", "category", "status", "failure"},
	)

	// SourceFetchDuration tracks adapter fetch latency including rate-limit waits.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enrich",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source adapter fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// RateLimitWaitTime tracks time spent waiting on a source's minimum interval.
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enrich",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a source's minimum interval in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	// BreakerTransitions counts circuit breaker state changes per host.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Total number of circuit breaker transitions",
		},
		[]string{"host", "to"},
	)

	// CategoriesTotal counts category outcomes by terminal state.
	CategoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "orchestrator",
			Name:      "categories_total",
			Help:      "Total number of categories resolved by terminal state",
		},
		[]string{"category", "state"},
	)

	// WinningScore tracks the overall score of applied results.
	WinningScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enrich",
			Subsystem: "orchestrator",
			Name:      "winning_score",
			Help:      "Overall quality score of the applied result per category",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"category"},
	)

	// EntitiesChanged counts entity changes written by enrichers.
	EntitiesChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "enricher",
			Name:      "entities_changed_total",
			Help:      "Total number of entities changed by enrichers",
		},
		[]string{"category"},
	)

	// RunDuration tracks whole enrichment runs.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enrich",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Duration of enrichment runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// RecordsTotal counts enrichment records by persistence outcome.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "store",
			Name:      "records_total",
			Help:      "Total number of enrichment records by outcome",
		},
		[]string{"outcome"},
	)

	// LayoutResolutions counts which tier resolved a layout.
	LayoutResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrich",
			Subsystem: "layout",
			Name:      "resolutions_total",
			Help:      "Total number of layout resolutions by tier",
		},
		[]string{"tier"},
	)
)

// ObserveFetch records one adapter fetch.
func ObserveFetch(source, category, status, failure string, elapsed time.Duration) {
	SourceFetchesTotal.WithLabelValues(source, category, status, failure).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
