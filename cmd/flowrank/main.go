package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowrank/flowrank/internal/config"
	"github.com/flowrank/flowrank/internal/engine"
	"github.com/flowrank/flowrank/internal/learner"
)

const (
	appName = "flowrank"
	version = "v1.4.0"
)

var (
	rootCmd = &cobra.Command{
		Use:     appName,
		Short:   "Options-flow signal scoring and entry gating",
		Version: version,
		Long: `flowrank turns raw options-flow snapshots into entry decisions:
pattern detection, feature enrichment, adaptive composite scoring and an
ordered gate chain, with realized outcomes feeding the weight learner.`,
	}

	configPath string
	debugLog   bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")

	cobra.OnInitialize(func() {
		if debugLog {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// buildLearner constructs the file-backed learner from the config.
func buildLearner(cfg config.Config) *learner.Learner {
	return learner.New(learner.NewFileStore(cfg.StatePath), cfg.Learner)
}

// buildEngine wires a full engine; journal and metrics are attached by the
// callers that need them.
func buildEngine(cfg config.Config, opts engine.Options) *engine.Engine {
	opts.ScorerCfg = cfg.Scorer
	opts.GateCfg = cfg.Gates
	opts.SuccessPnL = cfg.SuccessPnLPct
	return engine.New(opts)
}
