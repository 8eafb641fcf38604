package gates

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/models"
)

// Rejection reasons, machine-readable for shadow analysis.
const (
	ReasonScoreBelowThreshold = "score_below_threshold"
	ReasonToxicityTooHigh     = "toxicity_too_high"
	ReasonFreshnessTooLow     = "freshness_too_low"
	ReasonPriceExhausted      = "price_exhausted"
	ReasonGammaResistanceWall = "gamma_resistance_wall"
)

// GateCheck is the evidence record for a single gate evaluation. Value and
// Threshold always carry the exact compared numbers, never a bare boolean.
type GateCheck struct {
	Name        string      `json:"name"`
	Passed      bool        `json:"passed"`
	Value       interface{} `json:"value"`
	Threshold   interface{} `json:"threshold"`
	Description string      `json:"description"`
}

// EntryResult is the outcome of the ordered gate chain. Checks lists the
// gates in evaluation order up to and including the first failure; the
// chain short-circuits, so a later gate's reason is never reported when an
// earlier one already rejected.
type EntryResult struct {
	Instrument  string      `json:"instrument"`
	Mode        Mode        `json:"mode"`
	Accepted    bool        `json:"accepted"`
	Reason      string      `json:"reason,omitempty"`
	Checks      []GateCheck `json:"checks"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Evaluator runs the entry gate chain: score → toxicity → freshness →
// exhaustion → resistance wall. The last two need live market data and
// fail open when the feed cannot answer.
type Evaluator struct {
	feed       feeds.LiveFeed // nil = no live data, exhaustion/wall always fail open
	cfg        Config
	now        func() time.Time
	onFailOpen func(gate string)
}

// NewEvaluator builds the gate evaluator. feed may be nil in offline scans.
func NewEvaluator(feed feeds.LiveFeed, cfg Config) *Evaluator {
	return &Evaluator{feed: feed, cfg: cfg, now: time.Now}
}

// OnFailOpen registers a callback fired once per gate that passes only
// because its live data was unavailable. Used for telemetry.
func (e *Evaluator) OnFailOpen(fn func(gate string)) {
	e.onFailOpen = fn
}

// ShouldEnter evaluates the chain for one scored signal.
func (e *Evaluator) ShouldEnter(ctx context.Context, res models.CompositeResult, instrument string, mode Mode) EntryResult {
	out := EntryResult{
		Instrument:  instrument,
		Mode:        mode,
		EvaluatedAt: e.now(),
	}

	checks := []func(context.Context, models.CompositeResult, string) (GateCheck, string){
		e.scoreCheck(mode),
		e.toxicityCheck,
		e.freshnessCheck,
		e.exhaustionCheck,
		e.resistanceWallCheck,
	}

	for _, check := range checks {
		c, reason := check(ctx, res, instrument)
		out.Checks = append(out.Checks, c)
		if !c.Passed {
			out.Reason = reason
			log.Info().
				Str("instrument", instrument).
				Str("mode", string(mode)).
				Str("reason", reason).
				Interface("value", c.Value).
				Interface("threshold", c.Threshold).
				Msg("entry rejected")
			return out
		}
	}

	out.Accepted = true
	log.Info().
		Str("instrument", instrument).
		Str("mode", string(mode)).
		Float64("score", res.Score).
		Msg("entry accepted")
	return out
}

func (e *Evaluator) scoreCheck(mode Mode) func(context.Context, models.CompositeResult, string) (GateCheck, string) {
	return func(_ context.Context, res models.CompositeResult, instrument string) (GateCheck, string) {
		min := e.cfg.ScoreThreshold(instrument, mode)
		return GateCheck{
			Name:        "score",
			Passed:      res.Score >= min,
			Value:       res.Score,
			Threshold:   min,
			Description: fmt.Sprintf("composite score %.2f >= %.2f", res.Score, min),
		}, ReasonScoreBelowThreshold
	}
}

func (e *Evaluator) toxicityCheck(_ context.Context, res models.CompositeResult, _ string) (GateCheck, string) {
	return GateCheck{
		Name:        "toxicity",
		Passed:      res.Toxicity <= e.cfg.MaxToxicity,
		Value:       res.Toxicity,
		Threshold:   e.cfg.MaxToxicity,
		Description: fmt.Sprintf("toxicity %.2f <= %.2f", res.Toxicity, e.cfg.MaxToxicity),
	}, ReasonToxicityTooHigh
}

func (e *Evaluator) freshnessCheck(_ context.Context, res models.CompositeResult, _ string) (GateCheck, string) {
	return GateCheck{
		Name:        "freshness",
		Passed:      res.Freshness >= e.cfg.MinFreshness,
		Value:       res.Freshness,
		Threshold:   e.cfg.MinFreshness,
		Description: fmt.Sprintf("freshness %.2f >= %.2f", res.Freshness, e.cfg.MinFreshness),
	}, ReasonFreshnessTooLow
}

// exhaustionCheck rejects entries chasing a price already stretched far
// above its moving average. Feed outages fail open: a missing lookup must
// not veto a decision the other gates cleared.
func (e *Evaluator) exhaustionCheck(ctx context.Context, _ models.CompositeResult, instrument string) (GateCheck, string) {
	price, ma, atr, ok := e.priceContext(ctx, instrument)
	if !ok || atr <= 0 {
		return e.failOpen("exhaustion", instrument, "price/ATR unavailable"), ReasonPriceExhausted
	}

	ceiling := ma + e.cfg.ExhaustionATRs*atr
	return GateCheck{
		Name:        "exhaustion",
		Passed:      price <= ceiling,
		Value:       price,
		Threshold:   ceiling,
		Description: fmt.Sprintf("price %.2f <= MA%d + %.1fxATR = %.2f", price, e.cfg.MAPeriod, e.cfg.ExhaustionATRs, ceiling),
	}, ReasonPriceExhausted
}

// resistanceWallCheck rejects entries sitting right under a known dealer
// gamma level. Fails open when levels or price are unavailable.
func (e *Evaluator) resistanceWallCheck(ctx context.Context, _ models.CompositeResult, instrument string) (GateCheck, string) {
	if e.feed == nil {
		return e.failOpen("resistance_wall", instrument, "no live feed"), ReasonGammaResistanceWall
	}

	price, err := e.feed.CurrentPrice(ctx, instrument)
	if err != nil {
		return e.failOpen("resistance_wall", instrument, "price unavailable"), ReasonGammaResistanceWall
	}
	levels, err := e.feed.GammaLevels(ctx, instrument)
	if err != nil {
		return e.failOpen("resistance_wall", instrument, "gamma levels unavailable"), ReasonGammaResistanceWall
	}

	for _, level := range levels {
		if level <= 0 {
			continue
		}
		distancePct := math.Abs(price-level) / level * 100
		if distancePct <= e.cfg.GammaProximityPct {
			return GateCheck{
				Name:        "resistance_wall",
				Passed:      false,
				Value:       price,
				Threshold:   level,
				Description: fmt.Sprintf("price %.2f within %.2f%% of gamma level %.2f", price, e.cfg.GammaProximityPct, level),
			}, ReasonGammaResistanceWall
		}
	}

	return GateCheck{
		Name:        "resistance_wall",
		Passed:      true,
		Value:       price,
		Threshold:   e.cfg.GammaProximityPct,
		Description: fmt.Sprintf("price %.2f clear of %d gamma levels", price, len(levels)),
	}, ReasonGammaResistanceWall
}

func (e *Evaluator) priceContext(ctx context.Context, instrument string) (price, ma, atr float64, ok bool) {
	if e.feed == nil {
		return 0, 0, 0, false
	}
	price, err := e.feed.CurrentPrice(ctx, instrument)
	if err != nil {
		return 0, 0, 0, false
	}
	ma, err = e.feed.MovingAverage(ctx, instrument, e.cfg.MAPeriod)
	if err != nil {
		return 0, 0, 0, false
	}
	atr, err = e.feed.ATR(ctx, instrument, e.cfg.ATRPeriod)
	if err != nil {
		return 0, 0, 0, false
	}
	return price, ma, atr, true
}

func (e *Evaluator) failOpen(name, instrument, cause string) GateCheck {
	if e.onFailOpen != nil {
		e.onFailOpen(name)
	}
	log.Warn().
		Str("gate", name).
		Str("instrument", instrument).
		Str("cause", cause).
		Msg("gate failing open")
	return GateCheck{
		Name:        name,
		Passed:      true,
		Value:       "unavailable",
		Threshold:   "n/a",
		Description: fmt.Sprintf("%s: %s, failing open", name, cause),
	}
}
