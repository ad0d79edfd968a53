package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper-guess service.
// Metrics are organized by subsystem: cache, pipeline, warmer, citation
// lookups, and serving. All collectors are registered via promauto with
// the default Prometheus registry.
type Metrics struct {
	// CacheHits counts paper requests served from the cache.
	CacheHits prometheus.Counter

	// CacheMisses counts paper requests that required pipeline processing.
	CacheMisses prometheus.Counter

	// CacheSize tracks the current number of cached paper records.
	CacheSize prometheus.Gauge

	// CachePersistErrors counts failed cache persistence passes.
	CachePersistErrors prometheus.Counter

	// PapersProcessed counts papers fully processed by the pipeline.
	PapersProcessed prometheus.Counter

	// PipelineFailures counts pipeline failures, labeled by stage
	// (fetch, render, segment, title, encode).
	PipelineFailures *prometheus.CounterVec

	// PipelineDuration observes the end-to-end pipeline duration in seconds.
	PipelineDuration prometheus.Histogram

	// WarmerRuns counts background warming loops started.
	WarmerRuns prometheus.Counter

	// WarmerPapersCached counts papers inserted into the cache by the warmer.
	WarmerPapersCached prometheus.Counter

	// CitationLookups counts citation lookups, labeled by provider and outcome.
	CitationLookups *prometheus.CounterVec

	// GuessesScored counts scored guess submissions.
	GuessesScored prometheus.Counter

	// ServeAttempts observes how many selector draws a request needed
	// before a paper was served.
	ServeAttempts prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of paper requests served from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of paper requests that required processing",
		}),
		CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current number of cached paper records",
		}),
		CachePersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_persist_errors_total",
			Help:      "Total number of failed cache persistence passes",
		}),
		PapersProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Total number of papers fully processed by the pipeline",
		}),
		PipelineFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Total number of pipeline failures by stage",
		}, []string{"stage"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end paper pipeline duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		WarmerRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmer_runs_total",
			Help:      "Total number of background warming loops started",
		}),
		WarmerPapersCached: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmer_papers_cached_total",
			Help:      "Total number of papers cached by the background warmer",
		}),
		CitationLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citation_lookups_total",
			Help:      "Total number of citation lookups by provider and outcome",
		}, []string{"provider", "outcome"}),
		GuessesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guesses_scored_total",
			Help:      "Total number of scored guess submissions",
		}),
		ServeAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "serve_attempts",
			Help:      "Selector draws needed before a paper was served",
			Buckets:   []float64{1, 2, 3, 5, 8, 12, 15},
		}),
	}
}
