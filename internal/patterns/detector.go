package patterns

import (
	"sync"
	"time"

	"github.com/flowrank/flowrank/internal/models"
)

// Entry is one observed activity sample for an instrument.
type Entry struct {
	Timestamp        time.Time        `json:"timestamp"`
	Conviction       float64          `json:"conviction"`
	DarkPoolNotional float64          `json:"dark_pool_notional"`
	Sentiment        models.Sentiment `json:"sentiment"`
}

// Detector keeps a bounded per-instrument activity history and classifies
// it into named motifs. History is in-memory only; every detector method
// degrades to "not detected" on insufficient data and never errors.
type Detector struct {
	mu         sync.Mutex
	history    map[string][]Entry
	maxEntries int
	now        func() time.Time
}

const defaultMaxEntries = 20

// Detection defaults, overridable per call site via the typed params.
const (
	DefaultMinStaircaseSteps    = 3
	DefaultSweepPremiumUSD      = 10_000_000.0
	DefaultBurstWindow          = 5 * time.Minute
	DefaultWhaleMinDuration     = 30 * time.Minute
	whaleConvictionFloor        = 0.70
	whaleMinEntries             = 3
	burstMinCount               = 5
	sweepImmediateLookback      = 4
	sweepImmediateMeanMultiple  = 2.0
)

// NewDetector returns a detector with the standard 20-entry ring.
func NewDetector() *Detector {
	return NewDetectorWithClock(time.Now)
}

// NewDetectorWithClock injects the clock, so motif windows are testable
// without real sleeps.
func NewDetectorWithClock(now func() time.Time) *Detector {
	return &Detector{
		history:    make(map[string][]Entry),
		maxEntries: defaultMaxEntries,
		now:        now,
	}
}

// Update appends an activity sample derived from the snapshot. Oldest
// entries are evicted first once the ring is full.
func (d *Detector) Update(instrument string, snap models.RawSignalRecord) {
	conviction, _ := snap.ConvictionOrDefault()
	var notional float64
	if snap.DarkPool != nil {
		notional = snap.DarkPool.NotionalUSD
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	h := append(d.history[instrument], Entry{
		Timestamp:        d.now(),
		Conviction:       conviction,
		DarkPoolNotional: notional,
		Sentiment:        snap.Sentiment,
	})
	if len(h) > d.maxEntries {
		h = h[len(h)-d.maxEntries:]
	}
	d.history[instrument] = h
}

// History returns a copy of the instrument's ring, oldest first.
func (d *Detector) History(instrument string) []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.history[instrument]
	out := make([]Entry, len(h))
	copy(out, h)
	return out
}

// StaircaseResult reports a monotonically building conviction pattern.
type StaircaseResult struct {
	Detected bool    `json:"detected"`
	Steps    int     `json:"steps"`
	Slope    float64 `json:"slope"`
}

// DetectStaircase finds a strictly increasing conviction run at the tail of
// the history. Detected when the run spans at least minSteps entries; Steps
// is the full run length and Slope the conviction gained per step.
func (d *Detector) DetectStaircase(instrument string, minSteps int) StaircaseResult {
	if minSteps <= 0 {
		minSteps = DefaultMinStaircaseSteps
	}
	h := d.History(instrument)
	if len(h) < minSteps {
		return StaircaseResult{}
	}

	run := 1
	for i := len(h) - 1; i > 0; i-- {
		if h[i].Conviction > h[i-1].Conviction {
			run++
		} else {
			break
		}
	}
	if run < minSteps {
		return StaircaseResult{}
	}

	first := h[len(h)-run].Conviction
	last := h[len(h)-1].Conviction
	return StaircaseResult{
		Detected: true,
		Steps:    run,
		Slope:    (last - first) / float64(run),
	}
}

// SweepBlockResult reports an outsized dark-pool block print.
type SweepBlockResult struct {
	Detected   bool    `json:"detected"`
	PremiumUSD float64 `json:"premium_usd"`
	Immediate  bool    `json:"immediate"`
}

// DetectSweepBlock fires when the latest dark-pool notional clears the
// premium threshold. Immediate means the print dwarfs recent activity:
// more than 2x the mean of the prior four entries. With fewer than two
// priors there is no baseline, so a qualifying print is immediate.
func (d *Detector) DetectSweepBlock(instrument string, premiumThresholdUSD float64) SweepBlockResult {
	if premiumThresholdUSD <= 0 {
		premiumThresholdUSD = DefaultSweepPremiumUSD
	}
	h := d.History(instrument)
	if len(h) == 0 {
		return SweepBlockResult{}
	}

	latest := h[len(h)-1].DarkPoolNotional
	if latest < premiumThresholdUSD {
		return SweepBlockResult{PremiumUSD: latest}
	}

	priors := h[:len(h)-1]
	if len(priors) > sweepImmediateLookback {
		priors = priors[len(priors)-sweepImmediateLookback:]
	}
	immediate := true
	if len(priors) >= 2 {
		var sum float64
		for _, e := range priors {
			sum += e.DarkPoolNotional
		}
		mean := sum / float64(len(priors))
		immediate = latest > sweepImmediateMeanMultiple*mean
	}

	return SweepBlockResult{Detected: true, PremiumUSD: latest, Immediate: immediate}
}

// BurstResult reports clustered activity inside a trailing window.
type BurstResult struct {
	Detected  bool    `json:"detected"`
	Intensity float64 `json:"intensity"` // entries per minute-equivalent
	Count     int     `json:"count"`
}

// DetectBurst counts entries inside the trailing window; five or more is a
// burst. Intensity normalizes the count to the window's minute span.
func (d *Detector) DetectBurst(instrument string, window time.Duration) BurstResult {
	if window <= 0 {
		window = DefaultBurstWindow
	}
	cutoff := d.now().Add(-window)

	h := d.History(instrument)
	count := 0
	for _, e := range h {
		if !e.Timestamp.Before(cutoff) {
			count++
		}
	}
	return BurstResult{
		Detected:  count >= burstMinCount,
		Intensity: float64(count) / window.Minutes(),
		Count:     count,
	}
}

// WhalePersistenceResult reports sustained high-conviction presence.
type WhalePersistenceResult struct {
	Detected      bool          `json:"detected"`
	Duration      time.Duration `json:"duration"`
	AvgConviction float64       `json:"avg_conviction"`
}

// DetectWhalePersistence looks for at least three entries with conviction
// >= 0.70 whose first and last observations span minDuration or more.
func (d *Detector) DetectWhalePersistence(instrument string, minDuration time.Duration) WhalePersistenceResult {
	if minDuration <= 0 {
		minDuration = DefaultWhaleMinDuration
	}

	h := d.History(instrument)
	var whales []Entry
	for _, e := range h {
		if e.Conviction >= whaleConvictionFloor {
			whales = append(whales, e)
		}
	}
	if len(whales) < whaleMinEntries {
		return WhalePersistenceResult{}
	}

	span := whales[len(whales)-1].Timestamp.Sub(whales[0].Timestamp)
	var sum float64
	for _, e := range whales {
		sum += e.Conviction
	}
	avg := sum / float64(len(whales))

	if span < minDuration {
		return WhalePersistenceResult{Duration: span, AvgConviction: avg}
	}
	return WhalePersistenceResult{Detected: true, Duration: span, AvgConviction: avg}
}
