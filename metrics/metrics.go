// Package metrics exposes the indexer's Prometheus instrumentation,
// grounded on the teacher's promauto usage in
// stores/txmetacache/metrics.go. Unlike the teacher's package-level
// globals gated by an initialised bool, metrics here are bundled into a
// struct built with a caller-supplied prometheus.Registerer so tests
// can register independent instances without colliding on the default
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the indexer records.
type Metrics struct {
	BlocksIngested     prometheus.Counter
	BlocksRejected     *prometheus.CounterVec // label: reason
	ExtensionOutcomes  *prometheus.CounterVec // label: outcome
	CanonicityReleases prometheus.Counter
	ReorgDepth         prometheus.Histogram
	ReorgCount         prometheus.Counter
	BackpressureSpread prometheus.Gauge
	WatchQueueDepth    *prometheus.GaugeVec // label: watcher
	PruneOperations    prometheus.Counter
	CheckpointDuration prometheus.Histogram
}

// New registers every metric against reg. Pass prometheus.NewRegistry()
// in tests to keep instances independent, or prometheus.DefaultRegisterer
// in production so Handler's promhttp.Handler() (which serves the
// default registry) picks them up. A nil reg skips registration
// entirely, per promauto.With's own contract — useful only for
// throwaway Metrics values nothing ever scrapes.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "blocks_ingested_total",
			Help:      "Number of precomputed blocks successfully parsed and added to a branch.",
		}),
		BlocksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "blocks_rejected_total",
			Help:      "Number of blocks rejected, by reason.",
		}, []string{"reason"}),
		ExtensionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "extension_outcomes_total",
			Help:      "Branch-forest extension outcomes, one series per outcome kind.",
		}, []string{"outcome"}),
		CanonicityReleases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "canonicity_releases_total",
			Help:      "Number of canonicity updates released to subscribers.",
		}),
		ReorgDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mina_indexer",
			Name:      "reorg_depth_blocks",
			Help:      "Depth (in blocks unapplied) of each reorg.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		ReorgCount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "reorgs_total",
			Help:      "Number of best-tip reorganizations applied to the best ledger.",
		}),
		BackpressureSpread: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mina_indexer",
			Name:      "backpressure_spread_blocks",
			Help:      "Height spread between the highest and the first block height the writer has observed.",
		}),
		WatchQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mina_indexer",
			Name:      "watch_queue_depth",
			Help:      "Number of filesystem events queued per watcher.",
		}, []string{"watcher"}),
		PruneOperations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mina_indexer",
			Name:      "prune_operations_total",
			Help:      "Number of branch-forest prune passes run beyond the transition frontier.",
		}),
		CheckpointDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mina_indexer",
			Name:      "checkpoint_duration_seconds",
			Help:      "Wall-clock duration of store checkpoint operations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics (spec.md §6.5
// web-hostname/web-port flags).
func Handler() http.Handler {
	return promhttp.Handler()
}
