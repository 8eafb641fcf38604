package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowrank/flowrank/internal/config"
	"github.com/flowrank/flowrank/internal/engine"
	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/httpapi"
	"github.com/flowrank/flowrank/internal/infrastructure/db"
	"github.com/flowrank/flowrank/internal/metrics"
	"github.com/flowrank/flowrank/internal/persistence"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scoring and decision HTTP service",
	Long: `Start the HTTP API: /v1/ingest, /v1/score, /v1/decide, /v1/learner,
a websocket decision stream on /ws and Prometheus metrics on /metrics.

Decisions are journaled to Postgres when database.enabled is set in the
config, and held in memory otherwise. REDIS_ADDR switches the decision
cache to Redis.`,
	RunE: runServe,
}

var serveFeedSnapshot string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFeedSnapshot, "feed-snapshot", "",
		"JSON file of static price/ATR/MA/gamma data for the live-data gates")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer manager.Close()

	journal := manager.Repository()
	if journal == nil {
		log.Info().Msg("database disabled, journaling decisions in memory")
		journal = persistence.NewMemoryJournal().Repository()
	}

	feed, err := loadFeed(cfg)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	eng := buildEngine(cfg, engine.Options{
		Learner: buildLearner(cfg),
		Feed:    feed,
		Journal: journal,
		Metrics: reg,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverCfg := httpapi.DefaultServerConfig()
	if cfg.HTTP.Listen != "" {
		serverCfg.Listen = cfg.HTTP.Listen
	}
	server := httpapi.NewServer(eng, buildFlowCache(cfg), feeds.NewDecisionCacheAuto(), reg, serverCfg)

	log.Info().
		Str("version", version).
		Bool("database", manager.Repository() != nil).
		Bool("live_feed", feed != nil).
		Msg("flowrank starting")

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("flowrank stopped")
	return nil
}

// buildFlowCache returns the shared Redis flow cache when redis.addr is
// configured, otherwise the in-process one.
func buildFlowCache(cfg config.Config) feeds.FlowCache {
	if cfg.Redis.Addr == "" {
		return feeds.NewMemoryFlowCache()
	}
	client := redisv8.NewClient(&redisv8.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return feeds.NewRedisFlowCache(client)
}

// loadFeed builds the gate-check market data feed. Without a snapshot the
// feed is nil and the live-data gates fail open.
func loadFeed(cfg config.Config) (feeds.LiveFeed, error) {
	if serveFeedSnapshot == "" {
		return nil, nil
	}
	data, err := os.ReadFile(serveFeedSnapshot)
	if err != nil {
		return nil, fmt.Errorf("read feed snapshot: %w", err)
	}
	var static feeds.StaticFeed
	if err := json.Unmarshal(data, &static); err != nil {
		return nil, fmt.Errorf("parse feed snapshot: %w", err)
	}
	return feeds.NewGuardedFeed(&static, cfg.FeedGuard), nil
}
