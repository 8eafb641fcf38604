package learner

import "math"

// WilsonInterval is a confidence interval for a binomial proportion. It is
// the convergence gate for learned weights: a narrow interval means the
// component's success rate is pinned down well enough to stop exploring.
type WilsonInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the interval span.
func (w WilsonInterval) Width() float64 {
	return w.Upper - w.Lower
}

// zScore maps a confidence level to its two-sided normal critical value.
// Unknown levels fall back to 95%.
func zScore(confidenceLevel float64) float64 {
	switch {
	case confidenceLevel >= 0.99:
		return 2.576
	case confidenceLevel >= 0.95:
		return 1.96
	case confidenceLevel >= 0.90:
		return 1.645
	default:
		return 1.96
	}
}

// wilson computes the Wilson score interval for successes out of trials at
// the given confidence level. Zero trials yields the vacuous [0,1].
func wilson(successes, trials int, confidenceLevel float64) WilsonInterval {
	if trials <= 0 {
		return WilsonInterval{Lower: 0, Upper: 1}
	}

	z := zScore(confidenceLevel)
	n := float64(trials)
	p := float64(successes) / n
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := (z / denom) * math.Sqrt(p*(1-p)/n+z2/(4*n*n))

	lo := center - margin
	hi := center + margin
	if lo < 0 {
		lo = 0
	}
	if hi > 1 {
		hi = 1
	}
	return WilsonInterval{Lower: lo, Upper: hi}
}
