package learner

import (
	"math"
	"math/rand"
)

// sampleBeta draws from Beta(a, b) using the Marsaglia-Tsang Gamma method:
// Beta(a,b) = Ga/(Ga+Gb) with Ga~Gamma(a,1), Gb~Gamma(b,1). Degenerate
// parameters fall back to the documented uniform jitter around the mean.
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	if a <= 0 || b <= 0 || math.IsNaN(a) || math.IsNaN(b) {
		return fallbackSample(rng, a, b)
	}

	ga := sampleGamma(rng, a)
	gb := sampleGamma(rng, b)
	if ga+gb == 0 {
		return fallbackSample(rng, a, b)
	}
	s := ga / (ga + gb)
	if math.IsNaN(s) {
		return fallbackSample(rng, a, b)
	}
	return s
}

// fallbackSample is the documented degraded sampler: the posterior mean
// jittered by U(-0.1, 0.1), clamped to [0,1].
func fallbackSample(rng *rand.Rand, a, b float64) float64 {
	mean := 0.5
	if a > 0 && b > 0 {
		mean = a / (a + b)
	}
	s := mean + (rng.Float64()*0.2 - 0.1)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// sampleGamma draws from Gamma(shape, 1) via Marsaglia-Tsang. Shapes below
// one use the boosting identity Gamma(a) = Gamma(a+1) * U^(1/a).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
