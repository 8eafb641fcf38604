package feeds

import (
	"context"
	"errors"
)

// ErrUnavailable signals that a live market lookup could not be served.
// Gate checks that depend on live data fail open on it.
var ErrUnavailable = errors.New("live feed unavailable")

// LiveFeed is the best-effort market data surface used by the entry gates.
// Implementations should answer quickly or return an error; callers never
// block a decision on a slow feed.
type LiveFeed interface {
	// CurrentPrice returns the latest trade price for the instrument.
	CurrentPrice(ctx context.Context, instrument string) (float64, error)

	// ATR returns the average true range over the given bar count.
	ATR(ctx context.Context, instrument string, period int) (float64, error)

	// MovingAverage returns the simple moving average over the given bar count.
	MovingAverage(ctx context.Context, instrument string, period int) (float64, error)

	// GammaLevels returns known dealer gamma strike levels, unordered.
	GammaLevels(ctx context.Context, instrument string) ([]float64, error)
}

// StaticFeed serves fixed per-instrument values. Used in tests and in
// offline scans where no live connection exists.
type StaticFeed struct {
	Prices map[string]float64
	ATRs   map[string]float64
	MAs    map[string]float64
	Gamma  map[string][]float64
}

func (f *StaticFeed) CurrentPrice(_ context.Context, instrument string) (float64, error) {
	return f.lookup(f.Prices, instrument)
}

func (f *StaticFeed) ATR(_ context.Context, instrument string, _ int) (float64, error) {
	return f.lookup(f.ATRs, instrument)
}

func (f *StaticFeed) MovingAverage(_ context.Context, instrument string, _ int) (float64, error) {
	return f.lookup(f.MAs, instrument)
}

func (f *StaticFeed) GammaLevels(_ context.Context, instrument string) ([]float64, error) {
	levels, ok := f.Gamma[instrument]
	if !ok {
		return nil, ErrUnavailable
	}
	return levels, nil
}

func (f *StaticFeed) lookup(m map[string]float64, instrument string) (float64, error) {
	v, ok := m[instrument]
	if !ok {
		return 0, ErrUnavailable
	}
	return v, nil
}
