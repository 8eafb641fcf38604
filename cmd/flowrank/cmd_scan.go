package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowrank/flowrank/internal/engine"
	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/models"
	"github.com/flowrank/flowrank/internal/regime"
)

var scanCmd = &cobra.Command{
	Use:   "scan [snapshot.json]",
	Short: "Score a batch of raw signal snapshots offline",
	Long: `Read raw signal snapshots from a JSON file (an array of records),
run the full enrich/score/gate pipeline over each, and print the ranked
results. Live-data gates fail open in offline scans.

Examples:
  flowrank scan snapshots.json
  flowrank scan snapshots.json --regime trending_bull --mode aggressive --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var (
	scanRegime string
	scanMode   string
	scanJSON   bool
	scanTopN   int
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanRegime, "regime", "choppy", "Market regime (choppy|trending_bull|high_vol)")
	scanCmd.Flags().StringVar(&scanMode, "mode", "standard", "Gate mode (conservative|standard|aggressive)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit full decision artifacts as JSON")
	scanCmd.Flags().IntVar(&scanTopN, "top-n", 20, "Number of top-scoring instruments to print")
}

func runScan(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}
	var records []models.RawSignalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse snapshots: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s", args[0])
	}

	eng := buildEngine(cfg, engine.Options{Learner: buildLearner(cfg)})
	reg := regime.Parse(scanRegime)
	mode := gates.Mode(scanMode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	decisions := make([]engine.Decision, 0, len(records))
	for _, rec := range records {
		if rec.Instrument == "" {
			log.Warn().Msg("skipping record without instrument")
			continue
		}
		decisions = append(decisions, eng.Evaluate(ctx, rec.Instrument, rec, reg, mode))
	}

	sort.Slice(decisions, func(i, j int) bool {
		return decisions[i].Composite.Score > decisions[j].Composite.Score
	})
	if scanTopN > 0 && len(decisions) > scanTopN {
		decisions = decisions[:scanTopN]
	}

	if scanJSON {
		return json.NewEncoder(os.Stdout).Encode(decisions)
	}

	fmt.Printf("%-8s %7s %6s %6s %9s  %s\n", "SYMBOL", "SCORE", "TOX", "FRESH", "DECISION", "REASON")
	for _, dec := range decisions {
		verdict := "ENTER"
		if !dec.Entry.Accepted {
			verdict = "SKIP"
		}
		fmt.Printf("%-8s %7.2f %6.2f %6.2f %9s  %s\n",
			dec.Composite.Instrument,
			dec.Composite.Score,
			dec.Composite.Toxicity,
			dec.Composite.Freshness,
			verdict,
			dec.Entry.Reason)
	}
	return nil
}
