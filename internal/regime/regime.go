package regime

// Regime is the coarse market-condition label supplied by an external
// macro provider. It is scoring context only; this core never detects it.
type Regime int

const (
	Choppy Regime = iota
	TrendingBull
	HighVol
)

func (r Regime) String() string {
	switch r {
	case TrendingBull:
		return "trending_bull"
	case HighVol:
		return "high_vol"
	default:
		return "choppy"
	}
}

// Parse maps a label to its Regime; unknown labels read as choppy, the
// most conservative context.
func Parse(s string) Regime {
	switch s {
	case "trending_bull", "bull", "trending":
		return TrendingBull
	case "high_vol", "highvol", "volatile":
		return HighVol
	default:
		return Choppy
	}
}

// Component classes for regime weighting.
var (
	flowComponents = map[string]bool{
		"primary_flow":    true,
		"dark_pool":       true,
		"sweep_momentum":  true,
		"motif_staircase": true,
		"motif_burst":     true,
	}
	squeezeComponents = map[string]bool{
		"squeeze":        true,
		"short_interest": true,
		"ftd_pressure":   true,
		"gamma_exposure": true,
	}
)

// ComponentMultiplier scales a component's weight for the regime. Choppy
// is the neutral baseline; trending markets lean into flow continuation,
// high-volatility markets lean into compression and squeeze fuel.
func ComponentMultiplier(r Regime, component string) float64 {
	switch r {
	case TrendingBull:
		if flowComponents[component] {
			return 1.10
		}
	case HighVol:
		if squeezeComponents[component] {
			return 1.15
		}
		if flowComponents[component] {
			return 0.95
		}
	}
	return 1.0
}
