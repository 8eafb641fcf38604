package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gopkg.in/yaml.v3"

	"github.com/flowrank/flowrank/internal/persistence"
	"github.com/flowrank/flowrank/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns pool defaults; the journal is disabled until a DSN
// is configured explicitly.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// UnmarshalYAML accepts duration strings like "30m". Keys absent from the
// document keep whatever value the config already holds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
		QueryTimeout    string `yaml:"query_timeout"`
		Enabled         bool   `yaml:"enabled"`
	}{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime.String(),
		ConnMaxIdleTime: c.ConnMaxIdleTime.String(),
		QueryTimeout:    c.QueryTimeout.String(),
		Enabled:         c.Enabled,
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	lifetime, err := time.ParseDuration(aux.ConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("database conn_max_lifetime: %w", err)
	}
	idleTime, err := time.ParseDuration(aux.ConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("database conn_max_idle_time: %w", err)
	}
	queryTimeout, err := time.ParseDuration(aux.QueryTimeout)
	if err != nil {
		return fmt.Errorf("database query_timeout: %w", err)
	}

	c.DSN = aux.DSN
	c.MaxOpenConns = aux.MaxOpenConns
	c.MaxIdleConns = aux.MaxIdleConns
	c.ConnMaxLifetime = lifetime
	c.ConnMaxIdleTime = idleTime
	c.QueryTimeout = queryTimeout
	c.Enabled = aux.Enabled
	return nil
}

// Manager owns the database pool and the journal repositories.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
}

// NewManager opens the pool and wires the repositories. With Enabled false
// it returns a manager whose Repository() is nil; callers fall back to the
// in-memory journal.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{
		db:     db,
		config: config,
		repos: &persistence.Repository{
			Decisions: postgres.NewDecisionsRepo(db, config.QueryTimeout),
			Outcomes:  postgres.NewOutcomesRepo(db, config.QueryTimeout),
		},
	}, nil
}

// Repository returns the journal repos, or nil when the database is disabled.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Health pings the database within the query timeout.
func (m *Manager) Health(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(ctx)
}

// Close releases the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func ensureSchema(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			instrument TEXT NOT NULL,
			mode TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			accepted BOOLEAN NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			checks JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS decisions_instrument_ts_idx ON decisions (instrument, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			component TEXT NOT NULL,
			weight DOUBLE PRECISION NOT NULL,
			pnl_pct DOUBLE PRECISION NOT NULL,
			success BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS outcomes_component_ts_idx ON outcomes (component, ts DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
