package scorer

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/regime"
)

const (
	// Final score bounds.
	ScoreMin = 0.0
	ScoreMax = 8.0

	// Urgency: at least this many large sweep prints inside the trailing
	// hour multiplies the primary flow contribution.
	urgencySweepCount      = 3
	urgencySweepPremiumUSD = 100_000.0
	urgencyWindow          = time.Hour
	urgencyMultiplier      = 1.2

	// Whale conviction boost: genuinely large or persistent flow can clear
	// entry thresholds even when the rest of the components are weak.
	whaleBoost = 0.5

	sizingMultiplierMin = 0.25
	sizingMultiplierMax = 2.0

	entryDelayMax = 180
)

// WeightProvider supplies adaptive component weights. ok=false means no
// adaptive weight is available and the static default must be used.
type WeightProvider interface {
	OptimalWeight(component string) (float64, models.WeightSource, bool)
}

// Config tunes the scorer's override policy.
type Config struct {
	// PinnedComponents always score with their static default weight,
	// ignoring the learner. Ships with market_tide pinned: its learned
	// weight went bad historically and the override is under review as a
	// product decision.
	PinnedComponents []string `yaml:"pinned_components"`
}

// DefaultConfig returns the production scorer configuration.
func DefaultConfig() Config {
	return Config{PinnedComponents: []string{CompMarketTide}}
}

// Scorer combines the component inventory into one bounded composite
// score with a full audit breakdown.
type Scorer struct {
	weights WeightProvider // nil = static weights only
	pinned  map[string]bool
	now     func() time.Time
}

// New builds a scorer. weights may be nil, in which case every component
// scores with its static default.
func New(weights WeightProvider, cfg Config) *Scorer {
	pinned := make(map[string]bool, len(cfg.PinnedComponents))
	for _, name := range cfg.PinnedComponents {
		pinned[name] = true
	}
	return &Scorer{weights: weights, pinned: pinned, now: time.Now}
}

// NewWithClock injects the clock used for the urgency window.
func NewWithClock(weights WeightProvider, cfg Config, now func() time.Time) *Scorer {
	s := New(weights, cfg)
	s.now = now
	return s
}

// Score combines all components into a CompositeResult. It never fails:
// malformed sub-records were already resolved to defaults by enrichment,
// and the final score is always clamped into [0, 8].
func (s *Scorer) Score(sig models.EnrichedSignal, reg regime.Regime) models.CompositeResult {
	now := s.now()
	components := make(map[string]models.ComponentContribution, len(registry))
	var notes []string

	urgent := s.sweepUrgency(sig, now)

	var rawSum float64
	for _, spec := range registry {
		strength, prov := spec.strength(sig)
		weight, source := s.componentWeight(spec)
		weight *= regime.ComponentMultiplier(reg, spec.name)

		contribution := weight * strength
		if spec.name == CompPrimaryFlow && urgent {
			contribution *= urgencyMultiplier
		}

		components[spec.name] = models.ComponentContribution{
			Component:    spec.name,
			Weight:       weight,
			Strength:     strength,
			Contribution: contribution,
			Provenance:   prov,
			WeightSource: source,
		}
		rawSum += contribution
	}

	if urgent {
		notes = append(notes, fmt.Sprintf("urgency x%.1f: >=%d sweeps over $%.0fk in the last hour",
			urgencyMultiplier, urgencySweepCount, urgencySweepPremiumUSD/1000))
	}

	score := rawSum * sig.Freshness

	if sig.Motifs.WhalePersistence || sig.Motifs.SweepBlock {
		score += whaleBoost
		notes = append(notes, fmt.Sprintf("whale conviction boost +%.1f", whaleBoost))
	}

	if score < ScoreMin {
		score = ScoreMin
	}
	if score > ScoreMax {
		score = ScoreMax
	}

	result := models.CompositeResult{
		Instrument:        sig.Instrument,
		Score:             score,
		RawSum:            rawSum,
		Components:        components,
		Toxicity:          sig.Toxicity,
		Freshness:         sig.Freshness,
		SizingMultiplier:  s.sizingMultiplier(sig),
		EntryDelaySeconds: entryDelay(sig),
		Regime:            reg.String(),
		Notes:             notes,
		Timestamp:         now,
	}

	log.Debug().
		Str("instrument", sig.Instrument).
		Float64("score", score).
		Float64("raw_sum", rawSum).
		Float64("freshness", sig.Freshness).
		Str("regime", reg.String()).
		Msg("composite score computed")

	return result
}

// componentWeight resolves the weight for one component: pinned components
// and learner outages use the static default, otherwise the learner's
// current answer (converged or exploratory).
func (s *Scorer) componentWeight(spec componentSpec) (float64, models.WeightSource) {
	if s.pinned[spec.name] {
		return spec.defaultWeight, models.WeightPinned
	}
	if s.weights == nil {
		return spec.defaultWeight, models.WeightStatic
	}
	w, source, ok := s.weights.OptimalWeight(spec.name)
	if !ok {
		return spec.defaultWeight, models.WeightStatic
	}
	return w, source
}

// sweepUrgency reports whether enough large sweep prints landed inside the
// trailing hour to mark the flow as urgent.
func (s *Scorer) sweepUrgency(sig models.EnrichedSignal, now time.Time) bool {
	cutoff := now.Add(-urgencyWindow)
	count := 0
	for _, sweep := range sig.Raw.SweepTrades {
		if sweep.PremiumUSD > urgencySweepPremiumUSD && !sweep.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count >= urgencySweepCount
}

// sizingMultiplier computes the position-sizing overlay, independent of
// the score: alignment between the vol surface and the flow bumps size,
// conflict and toxic flow cut it.
func (s *Scorer) sizingMultiplier(sig models.EnrichedSignal) float64 {
	mult := 1.0
	dir := sentimentDirection(sig.Raw.Sentiment)

	if dir != 0 && sig.IVTermSkew*dir >= 0.05 {
		mult += 0.25 // surface leaning with the flow
	}
	if sig.Motifs.WhalePersistence {
		mult += 0.20
	}
	if dir != 0 && sig.IVTermSkew*dir <= -0.05 {
		mult -= 0.30 // surface leaning against the flow
	}
	if sig.Toxicity > 0.85 {
		mult -= 0.25
	}

	if mult < sizingMultiplierMin {
		mult = sizingMultiplierMin
	}
	if mult > sizingMultiplierMax {
		mult = sizingMultiplierMax
	}
	return mult
}

// entryDelay holds entries back while a pattern is still forming: a burst
// without a conviction staircase is mid-formation, a short staircase is
// still building.
func entryDelay(sig models.EnrichedSignal) int {
	delay := 0
	switch {
	case sig.Motifs.Burst && !sig.Motifs.Staircase:
		delay = 120
	case sig.Motifs.Staircase && sig.Motifs.StaircaseSteps < 4:
		delay = 60
	}
	if delay > entryDelayMax {
		delay = entryDelayMax
	}
	return delay
}

func sentimentDirection(s models.Sentiment) float64 {
	switch s {
	case models.SentimentBullish:
		return 1
	case models.SentimentBearish:
		return -1
	default:
		return 0
	}
}
