package models

import "time"

// Provenance tags where a component's strength came from.
type Provenance string

const (
	ProvenanceReal    Provenance = "real"    // computed from a present sub-record
	ProvenanceDefault Provenance = "default" // neutral default, sub-record absent
	ProvenanceMissing Provenance = "missing" // sub-record present but unusable
)

// WeightSource tags where a component's weight came from.
type WeightSource string

const (
	WeightLearned WeightSource = "learned" // converged bandit weight
	WeightSampled WeightSource = "sampled" // exploratory bandit sample
	WeightStatic  WeightSource = "static"  // fixed default
	WeightPinned  WeightSource = "pinned"  // static by override policy
)

// ComponentContribution is the full audit trail for one scoring component.
type ComponentContribution struct {
	Component    string       `json:"component"`
	Weight       float64      `json:"weight"`
	Strength     float64      `json:"strength"`
	Contribution float64      `json:"contribution"`
	Provenance   Provenance   `json:"provenance"`
	WeightSource WeightSource `json:"weight_source"`
}

// CompositeResult is the scored signal with a full breakdown. Score is
// always inside [0, 8]; Components always contains every known component
// key, never a subset.
type CompositeResult struct {
	Instrument        string                           `json:"instrument"`
	Score             float64                          `json:"score"`
	RawSum            float64                          `json:"raw_sum"`
	Components        map[string]ComponentContribution `json:"components"`
	Toxicity          float64                          `json:"toxicity"`
	Freshness         float64                          `json:"freshness"`
	SizingMultiplier  float64                          `json:"sizing_multiplier"`
	EntryDelaySeconds int                              `json:"entry_delay_seconds"`
	Regime            string                           `json:"regime"`
	Notes             []string                         `json:"notes,omitempty"`
	Timestamp         time.Time                        `json:"timestamp"`
}
