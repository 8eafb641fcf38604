package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func gatherValue(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestDecisionCounter(t *testing.T) {
	r := NewRegistry()

	r.Decisions.WithLabelValues("rejected", "toxicity_too_high").Inc()
	r.Decisions.WithLabelValues("rejected", "toxicity_too_high").Inc()
	r.Decisions.WithLabelValues("accepted", "").Inc()

	mf := gatherValue(t, r, "flowrank_decisions_total")
	if mf == nil {
		t.Fatal("decisions metric not gathered")
	}
	var rejected float64
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "outcome" && l.GetValue() == "rejected" {
				rejected = m.GetCounter().GetValue()
			}
		}
	}
	if rejected != 2 {
		t.Errorf("rejected count = %v, want 2", rejected)
	}
}

func TestScoreHistogramBuckets(t *testing.T) {
	r := NewRegistry()

	for _, score := range []float64{0.4, 2.8, 3.2, 7.9} {
		r.ScoreObserved.WithLabelValues("choppy").Observe(score)
	}

	mf := gatherValue(t, r, "flowrank_composite_score")
	if mf == nil {
		t.Fatal("score histogram not gathered")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 4 {
		t.Errorf("sample count = %d, want 4", h.GetSampleCount())
	}
}

func TestLearnerGauges(t *testing.T) {
	r := NewRegistry()

	r.LearnerTrials.WithLabelValues("primary_flow").Set(42)
	r.LearnerWeight.WithLabelValues("primary_flow").Set(1.35)
	r.LearnerDegraded.Set(1)

	mf := gatherValue(t, r, "flowrank_learner_trials")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 42 {
		t.Error("learner trials gauge not recorded")
	}
	mf = gatherValue(t, r, "flowrank_learner_degraded")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Error("degraded gauge not recorded")
	}
}
