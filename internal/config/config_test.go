package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Gates.Validate(); err != nil {
		t.Fatalf("default gate config invalid: %v", err)
	}
	if cfg.Learner.MinTrials != 30 {
		t.Errorf("learner min trials = %d, want 30", cfg.Learner.MinTrials)
	}
	if cfg.StatePath == "" {
		t.Error("state path must default to something")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gates.Score.Standard != 2.7 {
		t.Errorf("standard score threshold = %v, want default 2.7", cfg.Gates.Score.Standard)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowrank.yaml")
	body := `
state_path: /var/lib/flowrank/bandit.json
gates:
  score:
    conservative: 3.2
    standard: 3.0
    aggressive: 2.2
  max_toxicity: 0.90
  min_freshness: 0.25
  exhaustion_atrs: 2.5
  gamma_proximity_pct: 0.2
learner:
  min_trials: 50
  max_interval_width: 0.20
  confidence_level: 0.95
  history_cap: 1000
feed_guard:
  timeout: 250ms
database:
  enabled: true
  dsn: postgres://flowrank@localhost/flowrank?sslmode=disable
  conn_max_lifetime: 1h
redis:
  addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StatePath != "/var/lib/flowrank/bandit.json" {
		t.Errorf("state path = %q", cfg.StatePath)
	}
	if cfg.Gates.Score.Standard != 3.0 {
		t.Errorf("overridden standard threshold = %v, want 3.0", cfg.Gates.Score.Standard)
	}
	if cfg.Learner.MinTrials != 50 {
		t.Errorf("overridden min trials = %d, want 50", cfg.Learner.MinTrials)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.FeedGuard.Timeout != 250*time.Millisecond {
		t.Errorf("feed guard timeout = %v, want 250ms", cfg.FeedGuard.Timeout)
	}
	if cfg.FeedGuard.RequestsPerSecond != 20 {
		t.Errorf("feed guard rps = %v, want untouched default 20", cfg.FeedGuard.RequestsPerSecond)
	}
	if !cfg.Database.Enabled || cfg.Database.ConnMaxLifetime != time.Hour {
		t.Errorf("database = %+v, want enabled with 1h lifetime", cfg.Database)
	}
	if cfg.Database.QueryTimeout != 30*time.Second {
		t.Errorf("database query timeout = %v, want untouched default", cfg.Database.QueryTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.HTTP.Listen != ":8085" {
		t.Errorf("http listen = %q, want default", cfg.HTTP.Listen)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	body := `
gates:
  max_toxicity: 7.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("max_toxicity 7.0 should not load")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/flowrank.yaml"); err == nil {
		t.Error("missing file should error")
	}
}
