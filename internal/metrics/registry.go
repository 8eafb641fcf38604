package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the decision engine.
type Registry struct {
	// Decision flow
	Decisions     *prometheus.CounterVec // outcome: accepted|rejected, reason
	ScoreObserved *prometheus.HistogramVec
	GateFailOpens *prometheus.CounterVec

	// Enrichment
	Enrichments      prometheus.Counter
	DegradedFeatures *prometheus.CounterVec

	// Learner
	LearnerTrials   *prometheus.GaugeVec
	LearnerWeight   *prometheus.GaugeVec
	LearnerDegraded prometheus.Gauge
	Finalizations   *prometheus.CounterVec

	// Cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates the metric set on a private Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_decisions_total",
				Help: "Total gate decisions by outcome and rejection reason",
			},
			[]string{"outcome", "reason"},
		),
		ScoreObserved: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowrank_composite_score",
				Help:    "Composite score distribution per regime",
				Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 5, 6, 7, 8},
			},
			[]string{"regime"},
		),
		GateFailOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_gate_fail_opens_total",
				Help: "Gates that failed open because live data was unavailable",
			},
			[]string{"gate"},
		),
		Enrichments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowrank_enrichments_total",
				Help: "Total enrichment runs",
			},
		),
		DegradedFeatures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_degraded_features_total",
				Help: "Features resolved to their documented defaults",
			},
			[]string{"feature"},
		),
		LearnerTrials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowrank_learner_trials",
				Help: "Recorded outcomes per component",
			},
			[]string{"component"},
		),
		LearnerWeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowrank_learner_weight",
				Help: "Current promoted weight per component",
			},
			[]string{"component"},
		),
		LearnerDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowrank_learner_degraded",
				Help: "1 when the bandit store is unreadable and static weights are in force",
			},
		),
		Finalizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_weight_finalizations_total",
				Help: "Weight promotions after Wilson convergence",
			},
			[]string{"component"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_cache_hits_total",
				Help: "Cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrank_cache_misses_total",
				Help: "Cache misses by cache type",
			},
			[]string{"cache_type"},
		),
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(
		r.Decisions, r.ScoreObserved, r.GateFailOpens,
		r.Enrichments, r.DegradedFeatures,
		r.LearnerTrials, r.LearnerWeight, r.LearnerDegraded, r.Finalizations,
		r.CacheHits, r.CacheMisses,
	)
	return r
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
