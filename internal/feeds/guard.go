package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// GuardConfig tunes the protective wrapper around a live feed.
type GuardConfig struct {
	// Timeout bounds every lookup; a decision must never wait on a slow
	// feed longer than this.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond caps the outbound lookup rate. Burst allows short
	// spikes above it.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// ConsecutiveFailures trips the breaker; OpenTimeout is how long it
	// stays open before probing again.
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// DefaultGuardConfig returns the production guard settings.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:             500 * time.Millisecond,
		RequestsPerSecond:   20,
		Burst:               10,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// UnmarshalYAML accepts duration strings like "500ms". Keys absent from
// the document keep whatever value the config already holds.
func (c *GuardConfig) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout             string  `yaml:"timeout"`
		RequestsPerSecond   float64 `yaml:"requests_per_second"`
		Burst               int     `yaml:"burst"`
		ConsecutiveFailures uint32  `yaml:"consecutive_failures"`
		OpenTimeout         string  `yaml:"open_timeout"`
	}{
		Timeout:             c.Timeout.String(),
		RequestsPerSecond:   c.RequestsPerSecond,
		Burst:               c.Burst,
		ConsecutiveFailures: c.ConsecutiveFailures,
		OpenTimeout:         c.OpenTimeout.String(),
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	timeout, err := time.ParseDuration(aux.Timeout)
	if err != nil {
		return fmt.Errorf("feed_guard timeout: %w", err)
	}
	openTimeout, err := time.ParseDuration(aux.OpenTimeout)
	if err != nil {
		return fmt.Errorf("feed_guard open_timeout: %w", err)
	}

	c.Timeout = timeout
	c.RequestsPerSecond = aux.RequestsPerSecond
	c.Burst = aux.Burst
	c.ConsecutiveFailures = aux.ConsecutiveFailures
	c.OpenTimeout = openTimeout
	return nil
}

// GuardedFeed wraps a LiveFeed with a circuit breaker, a rate limiter and a
// hard per-call timeout. When the breaker is open or the limiter has no
// budget, lookups return ErrUnavailable immediately so dependent gate
// checks fail open instead of stalling the decision loop.
type GuardedFeed struct {
	inner   LiveFeed
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

// NewGuardedFeed wraps inner with the given guard settings.
func NewGuardedFeed(inner LiveFeed, cfg GuardConfig) *GuardedFeed {
	settings := gobreaker.Settings{
		Name:    "live_feed",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("live feed breaker state change")
		},
	}
	return &GuardedFeed{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		timeout: cfg.Timeout,
	}
}

func (g *GuardedFeed) CurrentPrice(ctx context.Context, instrument string) (float64, error) {
	return g.float(ctx, func(ctx context.Context) (float64, error) {
		return g.inner.CurrentPrice(ctx, instrument)
	})
}

func (g *GuardedFeed) ATR(ctx context.Context, instrument string, period int) (float64, error) {
	return g.float(ctx, func(ctx context.Context) (float64, error) {
		return g.inner.ATR(ctx, instrument, period)
	})
}

func (g *GuardedFeed) MovingAverage(ctx context.Context, instrument string, period int) (float64, error) {
	return g.float(ctx, func(ctx context.Context) (float64, error) {
		return g.inner.MovingAverage(ctx, instrument, period)
	})
}

func (g *GuardedFeed) GammaLevels(ctx context.Context, instrument string) ([]float64, error) {
	out, err := g.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.inner.GammaLevels(ctx, instrument)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float64), nil
}

func (g *GuardedFeed) float(ctx context.Context, fn func(ctx context.Context) (float64, error)) (float64, error) {
	out, err := g.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}

func (g *GuardedFeed) execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if !g.limiter.Allow() {
		return nil, ErrUnavailable
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		// Collapse breaker-open and upstream errors into one signal; the
		// gates only care that the data is not there.
		return nil, ErrUnavailable
	}
	return out, nil
}
