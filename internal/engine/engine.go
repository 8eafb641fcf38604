package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/enrich"
	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/learner"
	"github.com/flowrank/flowrank/internal/metrics"
	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/patterns"
	"github.com/flowrank/flowrank/internal/persistence"
	"github.com/flowrank/flowrank/internal/regime"
	"github.com/flowrank/flowrank/internal/scorer"
)

// Options configures an engine context. Feed, Journal and Metrics are
// optional; everything else gets a working default.
type Options struct {
	Detector   *patterns.Detector
	Learner    *learner.Learner
	ScorerCfg  scorer.Config
	GateCfg    gates.Config
	Feed       feeds.LiveFeed
	Journal    *persistence.Repository
	Metrics    *metrics.Registry
	SuccessPnL float64 // pnl threshold separating success from failure
}

// Engine is the explicit context that threads the detector, enricher,
// scorer, learner and gates through every call. One per process in
// production; a fresh one per test.
type Engine struct {
	detector *patterns.Detector
	enricher *enrich.Enricher
	scorer   *scorer.Scorer
	learner  *learner.Learner
	gates    *gates.Evaluator

	journal    *persistence.Repository
	metrics    *metrics.Registry
	successPnL float64
	now        func() time.Time
}

// Decision is the full artifact of one pipeline run over an instrument.
type Decision struct {
	Enriched  models.EnrichedSignal  `json:"enriched"`
	Composite models.CompositeResult `json:"composite"`
	Entry     gates.EntryResult      `json:"entry"`
}

// New builds an engine from the options, defaulting anything unset.
func New(opts Options) *Engine {
	if opts.Detector == nil {
		opts.Detector = patterns.NewDetector()
	}

	var provider scorer.WeightProvider
	if opts.Learner != nil {
		provider = opts.Learner
	}

	e := &Engine{
		detector:   opts.Detector,
		enricher:   enrich.NewEnricher(opts.Detector),
		scorer:     scorer.New(provider, opts.ScorerCfg),
		learner:    opts.Learner,
		gates:      gates.NewEvaluator(opts.Feed, opts.GateCfg),
		journal:    opts.Journal,
		metrics:    opts.Metrics,
		successPnL: opts.SuccessPnL,
		now:        time.Now,
	}

	if e.metrics != nil {
		e.gates.OnFailOpen(func(gate string) {
			e.metrics.GateFailOpens.WithLabelValues(gate).Inc()
		})
	}

	if e.learner != nil {
		for _, name := range scorer.ComponentNames() {
			e.learner.Register(name, scorer.DefaultWeight(name))
		}
	}
	return e
}

// Enrich derives secondary features for one raw snapshot.
func (e *Engine) Enrich(instrument string, rec models.RawSignalRecord) models.EnrichedSignal {
	sig := e.enricher.Enrich(instrument, rec, nil)
	if e.metrics != nil {
		e.metrics.Enrichments.Inc()
		for feature, status := range sig.Provenance {
			if status == models.FeatureDefaulted {
				e.metrics.DegradedFeatures.WithLabelValues(feature).Inc()
			}
		}
	}
	return sig
}

// Score combines the enriched signal into a composite result.
func (e *Engine) Score(sig models.EnrichedSignal, reg regime.Regime) models.CompositeResult {
	res := e.scorer.Score(sig, reg)
	if e.metrics != nil {
		e.metrics.ScoreObserved.WithLabelValues(reg.String()).Observe(res.Score)
	}
	return res
}

// ShouldEnter runs the gate chain and journals the decision.
func (e *Engine) ShouldEnter(ctx context.Context, res models.CompositeResult, instrument string, mode gates.Mode) gates.EntryResult {
	entry := e.gates.ShouldEnter(ctx, res, instrument, mode)

	if e.metrics != nil {
		if entry.Accepted {
			e.metrics.Decisions.WithLabelValues("accepted", "").Inc()
		} else {
			e.metrics.Decisions.WithLabelValues("rejected", entry.Reason).Inc()
		}
	}

	if e.journal != nil {
		rec := persistence.DecisionRecord{
			Timestamp:  entry.EvaluatedAt,
			Instrument: instrument,
			Mode:       string(mode),
			Score:      res.Score,
			Accepted:   entry.Accepted,
			Reason:     entry.Reason,
			Checks:     entry.Checks,
		}
		if err := e.journal.Decisions.Insert(ctx, rec); err != nil {
			log.Warn().Err(err).Str("instrument", instrument).Msg("decision journal write failed")
		}
	}

	return entry
}

// Evaluate runs the whole pipeline for one instrument snapshot.
func (e *Engine) Evaluate(ctx context.Context, instrument string, rec models.RawSignalRecord, reg regime.Regime, mode gates.Mode) Decision {
	sig := e.Enrich(instrument, rec)
	res := e.Score(sig, reg)
	entry := e.ShouldEnter(ctx, res, instrument, mode)
	return Decision{Enriched: sig, Composite: res, Entry: entry}
}

// RecordOutcome feeds one realized trade result back into the learner,
// promotes the weight when the posterior has converged, and journals the
// outcome.
func (e *Engine) RecordOutcome(ctx context.Context, component string, weightUsed, pnlPct float64) {
	success := pnlPct > e.successPnL

	if e.learner != nil {
		e.learner.RecordOutcome(component, weightUsed, pnlPct, e.successPnL)
		if e.learner.ShouldFinalize(component, learner.DefaultConfig().ConfidenceLevel) {
			e.learner.Finalize(component)
			if e.metrics != nil {
				e.metrics.Finalizations.WithLabelValues(component).Inc()
			}
		}
		if e.metrics != nil {
			snap := e.learner.Snapshot()
			if st, ok := snap[component]; ok {
				e.metrics.LearnerTrials.WithLabelValues(component).Set(float64(st.Trials))
				e.metrics.LearnerWeight.WithLabelValues(component).Set(st.CurrentWeight)
			}
			if e.learner.Degraded() {
				e.metrics.LearnerDegraded.Set(1)
			}
		}
	}

	if e.journal != nil {
		rec := persistence.OutcomeRecord{
			Timestamp: e.now(),
			Component: component,
			Weight:    weightUsed,
			PnLPct:    pnlPct,
			Success:   success,
		}
		if err := e.journal.Outcomes.Insert(ctx, rec); err != nil {
			log.Warn().Err(err).Str("component", component).Msg("outcome journal write failed")
		}
	}
}

// Learner exposes the learner for inspection surfaces; nil when the engine
// runs with static weights only.
func (e *Engine) Learner() *learner.Learner {
	return e.learner
}

// History returns the pattern history kept for an instrument.
func (e *Engine) History(instrument string) []patterns.Entry {
	return e.detector.History(instrument)
}
