package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/infrastructure/db"
	"github.com/flowrank/flowrank/internal/learner"
	"github.com/flowrank/flowrank/internal/scorer"
)

// Config is the full application configuration. Every section has working
// defaults; a config file only needs to name what it changes.
type Config struct {
	// StatePath is where the bandit state lives on disk.
	StatePath string `yaml:"state_path"`

	// SuccessPnLPct is the realized-pnl threshold separating a successful
	// trade from a failed one when feeding the learner.
	SuccessPnLPct float64 `yaml:"success_pnl_pct"`

	Learner   learner.Config    `yaml:"learner"`
	Scorer    scorer.Config     `yaml:"scorer"`
	Gates     gates.Config      `yaml:"gates"`
	FeedGuard feeds.GuardConfig `yaml:"feed_guard"`
	Database  db.Config         `yaml:"database"`

	Redis RedisConfig `yaml:"redis"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// RedisConfig locates the shared flow cache. Empty Addr means the
// in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HTTPConfig tunes the serving surface.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the production configuration baseline.
func Default() Config {
	return Config{
		StatePath:     "state/bandit.json",
		SuccessPnLPct: 0,
		Learner:       learner.DefaultConfig(),
		Scorer:        scorer.DefaultConfig(),
		Gates:         gates.DefaultConfig(),
		FeedGuard:     feeds.DefaultGuardConfig(),
		Database:      db.DefaultConfig(),
		HTTP:          HTTPConfig{Listen: ":8085"},
	}
}

// Load layers a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Gates.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
