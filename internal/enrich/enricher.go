package enrich

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/patterns"
)

// Feature identifies one derivable analytic feature.
type Feature string

const (
	FeatureFreshness      Feature = "freshness"
	FeatureToxicity       Feature = "toxicity"
	FeatureIVTermSkew     Feature = "iv_term_skew"
	FeatureSmileSlope     Feature = "smile_slope"
	FeaturePutCallSkew    Feature = "put_call_skew"
	FeatureEventAlignment Feature = "event_alignment"
	FeatureMotifs         Feature = "motifs"
)

// AllFeatures is the full enrichment set, in computation order.
var AllFeatures = []Feature{
	FeatureFreshness,
	FeatureToxicity,
	FeatureIVTermSkew,
	FeatureSmileSlope,
	FeaturePutCallSkew,
	FeatureEventAlignment,
	FeatureMotifs,
}

const (
	freshnessHalfLifeMinutes = 15.0

	toxicityConvictionFactor = 0.70
	toxicityNotionalTier1USD = 30_000_000.0
	toxicityNotionalTier2USD = 50_000_000.0
	toxicityTier1Bump        = 0.15
	toxicityTier2Bump        = 0.25

	ivTermSkewCap  = 0.15
	smileSlopeCap  = 0.10
	putCallSkewMin = 0.60
	putCallSkewMax = 1.40
)

// Enricher derives secondary features from raw snapshots. Each Enrich call
// also appends to the pattern detector's history, so back-to-back calls for
// the same instrument are not free: they advance the motif window.
type Enricher struct {
	detector *patterns.Detector
	now      func() time.Time
}

// NewEnricher builds an enricher over the shared pattern detector.
func NewEnricher(detector *patterns.Detector) *Enricher {
	return NewEnricherWithClock(detector, time.Now)
}

// NewEnricherWithClock injects the clock used for freshness decay.
func NewEnricherWithClock(detector *patterns.Detector, now func() time.Time) *Enricher {
	return &Enricher{detector: detector, now: now}
}

// Enrich computes the requested features over the snapshot. Features with
// missing inputs resolve to their documented defaults and are tagged
// degraded_default in the provenance map; Enrich never fails.
func (e *Enricher) Enrich(instrument string, rec models.RawSignalRecord, requested []Feature) models.EnrichedSignal {
	if len(requested) == 0 {
		requested = AllFeatures
	}

	e.detector.Update(instrument, rec)

	sig := models.EnrichedSignal{
		Instrument:  instrument,
		Raw:         rec,
		PutCallSkew: 1.0,
		Provenance:  make(map[string]models.FeatureStatus, len(requested)+1),
		EnrichedAt:  e.now(),
	}

	conviction, present := rec.ConvictionOrDefault()
	sig.Conviction = conviction
	if present {
		sig.Provenance[models.FeatureConviction] = models.FeatureOK
	} else {
		sig.Provenance[models.FeatureConviction] = models.FeatureDefaulted
	}

	for _, f := range requested {
		switch f {
		case FeatureFreshness:
			sig.Freshness, sig.Provenance[models.FeatureFreshness] = e.computeFreshness(rec)
		case FeatureToxicity:
			sig.Toxicity, sig.Provenance[models.FeatureToxicity] = computeToxicity(conviction, rec)
		case FeatureIVTermSkew:
			sig.IVTermSkew, sig.Provenance[models.FeatureIVTermSkew] = computeIVTermSkew(conviction, rec)
		case FeatureSmileSlope:
			sig.SmileSlope, sig.Provenance[models.FeatureSmileSlope] = computeSmileSlope(conviction, rec)
		case FeaturePutCallSkew:
			sig.PutCallSkew, sig.Provenance[models.FeaturePutCallSkew] = computePutCallSkew(conviction, rec)
		case FeatureEventAlignment:
			sig.EventAlignment = computeEventAlignment(conviction)
			sig.Provenance[models.FeatureEventAlignment] = models.FeatureOK
		case FeatureMotifs:
			sig.Motifs = e.detectMotifs(instrument)
			sig.Provenance[models.FeatureMotifs] = models.FeatureOK
		default:
			log.Warn().Str("feature", string(f)).Msg("unknown enrichment feature requested")
		}
	}

	return sig
}

// computeFreshness decays the snapshot's value with a 15-minute half-life:
// 0.5^(ageMinutes/15), clamped to [0,1]. No artificial floor: a stale
// snapshot is allowed to decay toward zero.
func (e *Enricher) computeFreshness(rec models.RawSignalRecord) (float64, models.FeatureStatus) {
	if rec.LastUpdate.IsZero() {
		return 0, models.FeatureDefaulted
	}
	age := e.now().Sub(rec.LastUpdate)
	if age < 0 {
		age = 0
	}
	fresh := math.Pow(0.5, age.Minutes()/freshnessHalfLifeMinutes)
	return clamp01(fresh), models.FeatureOK
}

// computeToxicity estimates the probability that the flow is informed.
// Base is conviction-driven; dark-pool notional above the $30M/$50M tiers
// bumps it, with the larger tier replacing the smaller.
func computeToxicity(conviction float64, rec models.RawSignalRecord) (float64, models.FeatureStatus) {
	tox := conviction * toxicityConvictionFactor
	status := models.FeatureDefaulted
	if rec.DarkPool != nil {
		status = models.FeatureOK
		switch {
		case rec.DarkPool.NotionalUSD > toxicityNotionalTier2USD:
			tox += toxicityTier2Bump
		case rec.DarkPool.NotionalUSD > toxicityNotionalTier1USD:
			tox += toxicityTier1Bump
		}
	}
	return clamp01(tox), status
}

// computeIVTermSkew proxies the term-structure tilt from conviction and
// dark-pool alignment, bounded to ±0.15. A real options surface would
// replace this; absent one, strong aligned flow reads as front-loaded vol.
func computeIVTermSkew(conviction float64, rec models.RawSignalRecord) (float64, models.FeatureStatus) {
	dir := sentimentDirection(rec.Sentiment)
	base := (conviction - 0.5) * 0.30 * dir

	if rec.DarkPool == nil || !rec.DarkPool.Sentiment.Valid() {
		return clampAbs(base*0.5, ivTermSkewCap), models.FeatureDefaulted
	}
	if rec.DarkPool.Sentiment == rec.Sentiment {
		return clampAbs(base, ivTermSkewCap), models.FeatureOK
	}
	// Disagreement between lit and dark flow halves the proxy.
	return clampAbs(base*0.5, ivTermSkewCap), models.FeatureOK
}

// computeSmileSlope proxies the smile tilt, bounded to ±0.10.
func computeSmileSlope(conviction float64, rec models.RawSignalRecord) (float64, models.FeatureStatus) {
	dir := sentimentDirection(rec.Sentiment)
	slope := (conviction - 0.5) * 0.20 * dir
	status := models.FeatureOK
	if !rec.Sentiment.Valid() {
		status = models.FeatureDefaulted
	}
	return clampAbs(slope, smileSlopeCap), status
}

// computePutCallSkew proxies the put/call premium ratio. Bullish conviction
// makes calls rich (ratio < 1), bearish makes puts rich (ratio > 1).
func computePutCallSkew(conviction float64, rec models.RawSignalRecord) (float64, models.FeatureStatus) {
	dir := sentimentDirection(rec.Sentiment)
	ratio := 1.0 - (conviction-0.5)*0.40*dir
	status := models.FeatureOK
	if !rec.Sentiment.Valid() {
		status = models.FeatureDefaulted
	}
	if ratio < putCallSkewMin {
		ratio = putCallSkewMin
	}
	if ratio > putCallSkewMax {
		ratio = putCallSkewMax
	}
	return ratio, status
}

// computeEventAlignment is a step function of conviction: very high
// conviction is treated as event-anticipating flow.
func computeEventAlignment(conviction float64) float64 {
	switch {
	case conviction >= 0.80:
		return 0.85
	case conviction >= 0.70:
		return 0.60
	default:
		return 0.20
	}
}

func (e *Enricher) detectMotifs(instrument string) models.MotifFlags {
	stair := e.detector.DetectStaircase(instrument, patterns.DefaultMinStaircaseSteps)
	sweep := e.detector.DetectSweepBlock(instrument, patterns.DefaultSweepPremiumUSD)
	burst := e.detector.DetectBurst(instrument, patterns.DefaultBurstWindow)
	whale := e.detector.DetectWhalePersistence(instrument, patterns.DefaultWhaleMinDuration)

	return models.MotifFlags{
		Staircase:        stair.Detected,
		StaircaseSteps:   stair.Steps,
		StaircaseSlope:   stair.Slope,
		SweepBlock:       sweep.Detected,
		SweepImmediate:   sweep.Immediate,
		Burst:            burst.Detected,
		BurstCount:       burst.Count,
		BurstIntensity:   burst.Intensity,
		WhalePersistence: whale.Detected,
		WhaleAvgConv:     whale.AvgConviction,
	}
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
