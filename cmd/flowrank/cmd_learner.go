package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flowrank/flowrank/internal/scorer"
)

var learnerCmd = &cobra.Command{
	Use:   "learner",
	Short: "Inspect and drive the weight learner",
}

var learnerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-component bandit state",
	Long: `Print the Beta posterior, trial counts, Wilson interval and current
weight for every registered component.

Examples:
  flowrank learner status
  flowrank learner status --json`,
	RunE: runLearnerStatus,
}

var learnerRecordCmd = &cobra.Command{
	Use:   "record <component> <weight> <pnl-pct>",
	Short: "Record one realized trade outcome",
	Long: `Feed a closed trade back into the learner, e.g. after manual
reconciliation:

  flowrank learner record primary_flow 1.30 2.4`,
	Args: cobra.ExactArgs(3),
	RunE: runLearnerRecord,
}

var learnerJSON bool

func init() {
	rootCmd.AddCommand(learnerCmd)
	learnerCmd.AddCommand(learnerStatusCmd)
	learnerCmd.AddCommand(learnerRecordCmd)

	learnerStatusCmd.Flags().BoolVar(&learnerJSON, "json", false, "Output state as JSON")
}

func runLearnerStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l := buildLearner(cfg)
	for _, name := range scorer.ComponentNames() {
		l.Register(name, scorer.DefaultWeight(name))
	}

	snap := l.Snapshot()
	if learnerJSON {
		return json.NewEncoder(os.Stdout).Encode(snap)
	}

	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	if l.Degraded() {
		fmt.Println("WARNING: bandit store unreadable, static weights in force")
	}
	fmt.Printf("%-18s %7s %7s %7s %9s %9s %10s\n",
		"COMPONENT", "TRIALS", "WINS", "WEIGHT", "IV-LOW", "IV-HIGH", "FINALIZED")
	for _, name := range names {
		st := snap[name]
		fmt.Printf("%-18s %7d %7d %7.2f %9.3f %9.3f %10v\n",
			name, st.Trials, st.Successes, st.CurrentWeight,
			st.Interval.Lower, st.Interval.Upper, st.Finalized)
	}
	return nil
}

func runLearnerRecord(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	component := args[0]
	var weight, pnl float64
	if _, err := fmt.Sscanf(args[1], "%f", &weight); err != nil {
		return fmt.Errorf("bad weight %q: %w", args[1], err)
	}
	if _, err := fmt.Sscanf(args[2], "%f", &pnl); err != nil {
		return fmt.Errorf("bad pnl %q: %w", args[2], err)
	}

	known := false
	for _, name := range scorer.ComponentNames() {
		if name == component {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown component %q", component)
	}

	l := buildLearner(cfg)
	l.Register(component, scorer.DefaultWeight(component))
	l.RecordOutcome(component, weight, pnl, cfg.SuccessPnLPct)
	if l.ShouldFinalize(component, cfg.Learner.ConfidenceLevel) {
		l.Finalize(component)
		fmt.Printf("%s converged; weight promoted\n", component)
	}

	st := l.Snapshot()[component]
	fmt.Printf("%s: trials=%d wins=%d interval=[%.3f, %.3f]\n",
		component, st.Trials, st.Successes, st.Interval.Lower, st.Interval.Upper)
	return nil
}
