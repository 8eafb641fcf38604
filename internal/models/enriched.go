package models

import "time"

// FeatureStatus is the typed outcome of one feature computation. Callers
// branch on this instead of on caught errors: a feature either computed
// from real inputs, resolved to its documented default, or hit state that
// should never occur.
type FeatureStatus string

const (
	FeatureOK        FeatureStatus = "ok"
	FeatureDefaulted FeatureStatus = "degraded_default"
	FeatureInvalid   FeatureStatus = "invalid"
)

// Feature names used in the enrichment provenance map.
const (
	FeatureConviction     = "conviction"
	FeatureFreshness      = "freshness"
	FeatureToxicity       = "toxicity"
	FeatureIVTermSkew     = "iv_term_skew"
	FeatureSmileSlope     = "smile_slope"
	FeaturePutCallSkew    = "put_call_skew"
	FeatureEventAlignment = "event_alignment"
	FeatureMotifs         = "motifs"
)

// MotifFlags is the pattern-detector read at enrichment time.
type MotifFlags struct {
	Staircase        bool    `json:"staircase"`
	StaircaseSteps   int     `json:"staircase_steps"`
	StaircaseSlope   float64 `json:"staircase_slope"`
	SweepBlock       bool    `json:"sweep_block"`
	SweepImmediate   bool    `json:"sweep_immediate"`
	Burst            bool    `json:"burst"`
	BurstCount       int     `json:"burst_count"`
	BurstIntensity   float64 `json:"burst_intensity"`
	WhalePersistence bool    `json:"whale_persistence"`
	WhaleAvgConv     float64 `json:"whale_avg_conviction"`
}

// EnrichedSignal is a RawSignalRecord plus the derived analytic features.
// It is recomputed per call and never stored.
type EnrichedSignal struct {
	Instrument     string                   `json:"instrument"`
	Raw            RawSignalRecord          `json:"raw"`
	Conviction     float64                  `json:"conviction"`
	IVTermSkew     float64                  `json:"iv_term_skew"`  // ±0.15
	SmileSlope     float64                  `json:"smile_slope"`   // ±0.10
	PutCallSkew    float64                  `json:"put_call_skew"` // ratio near 1.0
	Toxicity       float64                  `json:"toxicity"`      // 0..1
	EventAlignment float64                  `json:"event_alignment"`
	Freshness      float64                  `json:"freshness"` // 0..1
	Motifs         MotifFlags               `json:"motifs"`
	Provenance     map[string]FeatureStatus `json:"provenance"`
	EnrichedAt     time.Time                `json:"enriched_at"`
}
