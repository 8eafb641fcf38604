package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/flowrank/flowrank/internal/models"
)

func conv(c float64) *float64 { return &c }

func snapshot(c float64, notional float64) models.RawSignalRecord {
	return models.RawSignalRecord{
		Sentiment:  models.SentimentBullish,
		Conviction: conv(c),
		DarkPool:   &models.DarkPoolRecord{NotionalUSD: notional, Sentiment: models.SentimentBullish},
	}
}

func newTestDetector(start time.Time) (*Detector, *time.Time) {
	now := start
	d := NewDetectorWithClock(func() time.Time { return now })
	return d, &now
}

func TestUpdateEvictsOldest(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for i := 0; i < 25; i++ {
		d.Update("AAPL", snapshot(float64(i)/100.0, 0))
		*now = now.Add(time.Minute)
	}

	h := d.History("AAPL")
	if len(h) != 20 {
		t.Fatalf("history length = %d, want 20", len(h))
	}
	// Oldest five samples must have been evicted.
	if h[0].Conviction != 0.05 {
		t.Errorf("oldest surviving conviction = %v, want 0.05", h[0].Conviction)
	}
}

func TestDetectStaircase(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for _, c := range []float64{0.40, 0.55, 0.65, 0.80} {
		d.Update("NVDA", snapshot(c, 0))
		*now = now.Add(5 * time.Minute)
	}

	res := d.DetectStaircase("NVDA", 3)
	if !res.Detected {
		t.Fatal("expected staircase detected")
	}
	if res.Steps != 4 {
		t.Errorf("steps = %d, want 4", res.Steps)
	}
	wantSlope := (0.80 - 0.40) / 4
	if diff := res.Slope - wantSlope; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("slope = %v, want %v", res.Slope, wantSlope)
	}
}

func TestDetectStaircaseBrokenRun(t *testing.T) {
	d, _ := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for _, c := range []float64{0.40, 0.60, 0.50, 0.55} {
		d.Update("NVDA", snapshot(c, 0))
	}
	if res := d.DetectStaircase("NVDA", 3); res.Detected {
		t.Errorf("detected staircase across a broken run: %+v", res)
	}
}

func TestDetectStaircaseInsufficientData(t *testing.T) {
	d, _ := newTestDetector(time.Now())
	d.Update("TSLA", snapshot(0.5, 0))

	res := d.DetectStaircase("TSLA", 3)
	if res.Detected || res.Steps != 0 || res.Slope != 0 {
		t.Errorf("want zero result on short history, got %+v", res)
	}
	if res := d.DetectStaircase("UNSEEN", 3); res.Detected {
		t.Error("unseen instrument should not detect")
	}
}

func TestDetectSweepBlock(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	// Quiet baseline, then an outsized print.
	for i := 0; i < 4; i++ {
		d.Update("AMD", snapshot(0.5, 4_000_000))
		*now = now.Add(time.Minute)
	}
	d.Update("AMD", snapshot(0.6, 45_000_000))

	res := d.DetectSweepBlock("AMD", 10_000_000)
	if !res.Detected {
		t.Fatal("expected sweep/block detected")
	}
	if res.PremiumUSD != 45_000_000 {
		t.Errorf("premium = %v, want 45M", res.PremiumUSD)
	}
	if !res.Immediate {
		t.Error("45M against a 4M baseline should be immediate")
	}
}

func TestDetectSweepBlockNotImmediate(t *testing.T) {
	d, _ := newTestDetector(time.Now())

	for i := 0; i < 4; i++ {
		d.Update("AMD", snapshot(0.5, 30_000_000))
	}
	d.Update("AMD", snapshot(0.5, 40_000_000))

	res := d.DetectSweepBlock("AMD", 10_000_000)
	if !res.Detected {
		t.Fatal("expected detection above threshold")
	}
	if res.Immediate {
		t.Error("40M against a 30M baseline is not immediate")
	}
}

func TestDetectSweepBlockFewPriors(t *testing.T) {
	d, _ := newTestDetector(time.Now())
	d.Update("SPY", snapshot(0.5, 12_000_000))

	res := d.DetectSweepBlock("SPY", 10_000_000)
	if !res.Detected || !res.Immediate {
		t.Errorf("first qualifying print should be detected and immediate, got %+v", res)
	}
}

func TestDetectBurst(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for i := 0; i < 6; i++ {
		d.Update("GME", snapshot(0.5, 0))
		*now = now.Add(30 * time.Second)
	}

	res := d.DetectBurst("GME", 5*time.Minute)
	if !res.Detected {
		t.Fatalf("expected burst, got %+v", res)
	}
	if res.Count != 6 {
		t.Errorf("count = %d, want 6", res.Count)
	}
	wantIntensity := 6.0 / 5.0
	if diff := res.Intensity - wantIntensity; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("intensity = %v, want %v", res.Intensity, wantIntensity)
	}
}

func TestDetectBurstStaleEntries(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for i := 0; i < 6; i++ {
		d.Update("GME", snapshot(0.5, 0))
		*now = now.Add(10 * time.Minute)
	}

	res := d.DetectBurst("GME", 5*time.Minute)
	if res.Detected {
		t.Errorf("entries 10m apart should not burst, got %+v", res)
	}
}

func TestDetectWhalePersistence(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	convictions := []float64{0.75, 0.40, 0.80, 0.72, 0.90}
	for _, c := range convictions {
		d.Update("MSFT", snapshot(c, 0))
		*now = now.Add(12 * time.Minute)
	}

	// Whale entries at t=0, 24, 36, 48 minutes: span 48m >= 30m.
	res := d.DetectWhalePersistence("MSFT", 30*time.Minute)
	if !res.Detected {
		t.Fatalf("expected whale persistence, got %+v", res)
	}
	if res.Duration != 48*time.Minute {
		t.Errorf("duration = %v, want 48m", res.Duration)
	}
	wantAvg := (0.75 + 0.80 + 0.72 + 0.90) / 4
	if diff := res.AvgConviction - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg conviction = %v, want %v", res.AvgConviction, wantAvg)
	}
}

func TestDetectWhalePersistenceTooShort(t *testing.T) {
	d, now := newTestDetector(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		d.Update("MSFT", snapshot(0.85, 0))
		*now = now.Add(5 * time.Minute)
	}

	res := d.DetectWhalePersistence("MSFT", 30*time.Minute)
	if res.Detected {
		t.Errorf("10m span should not qualify, got %+v", res)
	}
	if res.AvgConviction == 0 {
		t.Error("avg conviction should still be reported for the whale entries")
	}
}

func TestDetectorsNeverPanicOnEmptyHistory(t *testing.T) {
	d := NewDetector()
	for i, check := range []func() bool{
		func() bool { return d.DetectStaircase("X", 3).Detected },
		func() bool { return d.DetectSweepBlock("X", 0).Detected },
		func() bool { return d.DetectBurst("X", 0).Detected },
		func() bool { return d.DetectWhalePersistence("X", 0).Detected },
	} {
		if check() {
			t.Error(fmt.Sprintf("detector %d fired on empty history", i))
		}
	}
}
