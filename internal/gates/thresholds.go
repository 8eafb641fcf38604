package gates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode is the risk posture the caller trades under. It selects the static
// score threshold when no per-instrument override exists.
type Mode string

const (
	ModeConservative Mode = "conservative"
	ModeStandard     Mode = "standard"
	ModeAggressive   Mode = "aggressive"
)

// ModeThresholds holds the minimum composite score per mode.
type ModeThresholds struct {
	Conservative float64 `yaml:"conservative"`
	Standard     float64 `yaml:"standard"`
	Aggressive   float64 `yaml:"aggressive"`
}

// Config contains every gate threshold. All checks compare against these;
// nothing is hard-coded in the evaluation path.
type Config struct {
	Score ModeThresholds `yaml:"score"`

	// InstrumentOverrides replaces the mode threshold for specific names,
	// e.g. permanently noisier tickers that need a higher bar.
	InstrumentOverrides map[string]float64 `yaml:"instrument_overrides"`

	MaxToxicity  float64 `yaml:"max_toxicity"`
	MinFreshness float64 `yaml:"min_freshness"`

	// Exhaustion: reject when price sits more than ExhaustionATRs average
	// true ranges above its MAPeriod moving average.
	ExhaustionATRs float64 `yaml:"exhaustion_atrs"`
	MAPeriod       int     `yaml:"ma_period"`
	ATRPeriod      int     `yaml:"atr_period"`

	// Resistance wall: reject when price is within GammaProximityPct of a
	// known dealer gamma level.
	GammaProximityPct float64 `yaml:"gamma_proximity_pct"`
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		Score: ModeThresholds{
			Conservative: 3.2,
			Standard:     2.7,
			Aggressive:   2.2,
		},
		InstrumentOverrides: map[string]float64{},
		MaxToxicity:         0.90,
		MinFreshness:        0.25,
		ExhaustionATRs:      2.5,
		MAPeriod:            20,
		ATRPeriod:           14,
		GammaProximityPct:   0.2,
	}
}

// LoadConfig reads gate thresholds from a YAML file, layered over the
// defaults so a partial file only overrides what it names.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read gate config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse gate config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid gate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects threshold combinations that would make the gates
// vacuous or impossible.
func (c Config) Validate() error {
	if c.MaxToxicity <= 0 || c.MaxToxicity > 1 {
		return fmt.Errorf("max_toxicity %.2f out of (0,1]", c.MaxToxicity)
	}
	if c.MinFreshness < 0 || c.MinFreshness >= 1 {
		return fmt.Errorf("min_freshness %.2f out of [0,1)", c.MinFreshness)
	}
	if c.ExhaustionATRs <= 0 {
		return fmt.Errorf("exhaustion_atrs %.2f must be positive", c.ExhaustionATRs)
	}
	if c.GammaProximityPct <= 0 || c.GammaProximityPct > 5 {
		return fmt.Errorf("gamma_proximity_pct %.2f out of (0,5]", c.GammaProximityPct)
	}
	for _, min := range []float64{c.Score.Conservative, c.Score.Standard, c.Score.Aggressive} {
		if min < 0 || min > 8 {
			return fmt.Errorf("score threshold %.2f outside the score range [0,8]", min)
		}
	}
	return nil
}

// ScoreThreshold resolves the minimum score for an instrument and mode:
// per-instrument override first, then the mode tier. Unknown modes read as
// conservative.
func (c Config) ScoreThreshold(instrument string, mode Mode) float64 {
	if override, ok := c.InstrumentOverrides[instrument]; ok {
		return override
	}
	switch mode {
	case ModeStandard:
		return c.Score.Standard
	case ModeAggressive:
		return c.Score.Aggressive
	default:
		return c.Score.Conservative
	}
}
