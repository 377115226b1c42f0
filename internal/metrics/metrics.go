// Package metrics holds the prometheus instruments shared by the catalog core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for AdapterCalls.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeNotFound  = "not_found"
	OutcomeParse     = "parse_error"
	OutcomeTransient = "transient"
	OutcomeOpen      = "circuit_open"
	OutcomeLate      = "late"
	OutcomeError     = "error"
)

var (
	// Source adapters
	AdapterCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_adapter_calls_total",
			Help: "Adapter calls by source, operation and outcome",
		},
		[]string{"source", "operation", "outcome"},
	)

	AdapterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anineesan_adapter_duration_seconds",
			Help:    "Adapter call latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	AdapterRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_adapter_retries_total",
			Help: "Retries issued after transient upstream failures",
		},
		[]string{"source"},
	)

	// ParseSkips counts list items dropped because they could not be parsed.
	ParseSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_parse_skips_total",
			Help: "Upstream items skipped because they could not be parsed",
		},
		[]string{"source"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anineesan_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		},
		[]string{"source"},
	)

	// Reconciliation
	ReconciledEntities = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anineesan_reconciled_entities",
			Help:    "Canonical entities produced per reconciliation pass",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 250},
		},
	)

	DroppedGroups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anineesan_reconcile_dropped_groups_total",
			Help: "Record groups dropped because no primary id was found",
		},
	)

	// Stream resolution
	ResolutionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_resolution_attempts_total",
			Help: "Title candidates tried against the stream catalog",
		},
		[]string{"outcome"},
	)

	// Corpus cache
	CorpusRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_corpus_refreshes_total",
			Help: "Corpus refresh cycles by result",
		},
		[]string{"result"},
	)

	CorpusRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anineesan_corpus_records",
			Help: "Records in the published corpus snapshot",
		},
	)

	CorpusAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anineesan_corpus_published_timestamp_seconds",
			Help: "Unix time the current corpus snapshot was fetched",
		},
	)

	// Recommendation index
	IndexBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anineesan_index_builds_total",
			Help: "Recommendation index rebuilds",
		},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anineesan_index_entities",
			Help: "Entities in the current recommendation index",
		},
	)

	// Record cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anineesan_record_cache_lookups_total",
			Help: "Record cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// ObserveAdapter records the latency and outcome of one adapter call.
func ObserveAdapter(source, operation, outcome string, started time.Time) {
	AdapterCalls.WithLabelValues(source, operation, outcome).Inc()
	AdapterDuration.WithLabelValues(source, operation).Observe(time.Since(started).Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
