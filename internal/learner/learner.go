package learner

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/models"
)

// Outcome is one realized trade result attributed to a component.
type Outcome struct {
	Weight  float64   `json:"weight"`
	PnLPct  float64   `json:"pnl_pct"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
}

// ComponentState is the Beta-Bernoulli posterior plus bookkeeping for one
// scoring component. Trials is monotonically non-decreasing.
type ComponentState struct {
	Alpha          float64        `json:"alpha"`
	Beta           float64        `json:"beta"`
	CurrentWeight  float64        `json:"current_weight"`
	ProposedWeight float64        `json:"proposed_weight"`
	Trials         int            `json:"trials"`
	Successes      int            `json:"successes"`
	Interval       WilsonInterval `json:"interval"`
	Finalized      bool           `json:"finalized"`
	History        []Outcome      `json:"history,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Config tunes the learner's convergence gate and history cap.
type Config struct {
	MinTrials        int     `yaml:"min_trials"`         // default 30
	MaxIntervalWidth float64 `yaml:"max_interval_width"` // default 0.20
	ConfidenceLevel  float64 `yaml:"confidence_level"`   // default 0.95
	HistoryCap       int     `yaml:"history_cap"`        // default 1000
	Seed             int64   `yaml:"-"`                  // 0 = time-seeded
}

// DefaultConfig returns the production learner tuning.
func DefaultConfig() Config {
	return Config{
		MinTrials:        30,
		MaxIntervalWidth: 0.20,
		ConfidenceLevel:  0.95,
		HistoryCap:       1000,
	}
}

// Weight mapping from a Beta sample in [0,1] to the usable weight range.
// The linear [0.25, 2.5] mapping is a deliberate implementation choice;
// weightFromSample is the single place to swap in an alternative scale.
const (
	weightFloor = 0.25
	weightSpan  = 2.25
)

func weightFromSample(s float64) float64 {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return weightFloor + weightSpan*s
}

// Learner tunes component weights online from realized trade outcomes.
// One instance serves the whole process; every mutation persists through
// the store with atomic-replace semantics. Internal failures never reach
// the caller: a broken store puts the learner into a degraded mode where
// no adaptive weight is available and scoring falls back to static
// defaults.
type Learner struct {
	mu       sync.Mutex
	cfg      Config
	store    Store
	states   map[string]*ComponentState
	rng      *rand.Rand
	degraded bool
	now      func() time.Time
}

// New loads persisted bandit state and returns a ready learner. A corrupt
// or unreadable store yields a degraded learner rather than an error.
func New(store Store, cfg Config) *Learner {
	if cfg.MinTrials <= 0 {
		cfg.MinTrials = 30
	}
	if cfg.MaxIntervalWidth <= 0 {
		cfg.MaxIntervalWidth = 0.20
	}
	if cfg.ConfidenceLevel <= 0 {
		cfg.ConfidenceLevel = 0.95
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	l := &Learner{
		cfg:   cfg,
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
	}

	states, err := store.Load()
	if err != nil {
		log.Error().Err(err).Msg("bandit store unreadable, falling back to static weights everywhere")
		l.degraded = true
		l.states = make(map[string]*ComponentState)
		return l
	}
	l.states = states
	return l
}

// Degraded reports whether the learner lost its store and is serving no
// adaptive weights.
func (l *Learner) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// Register creates state for a component if absent. Idempotent.
func (l *Learner) Register(component string, initialWeight float64) {
	if initialWeight <= 0 {
		initialWeight = 1.0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.degraded {
		return
	}
	if _, ok := l.states[component]; ok {
		return
	}
	l.states[component] = &ComponentState{
		Alpha:          1,
		Beta:           1,
		CurrentWeight:  initialWeight,
		ProposedWeight: initialWeight,
		Interval:       WilsonInterval{Lower: 0, Upper: 1},
		UpdatedAt:      l.now(),
	}
	l.persistLocked()
}

// SampleWeight draws a Thompson sample from the component's posterior and
// maps it into the weight range. The draw is stored as the proposed weight
// so a later Finalize promotes exactly what was explored.
func (l *Learner) SampleWeight(component string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stateLocked(component)
	if st == nil {
		return 1.0
	}
	s := sampleBeta(l.rng, st.Alpha, st.Beta)
	w := weightFromSample(s)
	st.ProposedWeight = w
	st.UpdatedAt = l.now()
	l.persistLocked()
	return w
}

// RecordOutcome updates the posterior with one realized trade outcome.
// Success means the realized pnl cleared the threshold.
func (l *Learner) RecordOutcome(component string, weightUsed, pnlPct, successThreshold float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stateLocked(component)
	if st == nil {
		return
	}

	success := pnlPct > successThreshold
	if success {
		st.Alpha++
		st.Successes++
	} else {
		st.Beta++
	}
	st.Trials++
	st.History = append(st.History, Outcome{
		Weight:  weightUsed,
		PnLPct:  pnlPct,
		Success: success,
		At:      l.now(),
	})
	if len(st.History) > l.cfg.HistoryCap {
		st.History = st.History[len(st.History)-l.cfg.HistoryCap:]
	}
	st.Interval = wilson(st.Successes, st.Trials, l.cfg.ConfidenceLevel)

	// Re-evaluating convergence on every outcome lets a drifted component
	// fall back to exploring: fresh evidence can widen the interval past
	// the gate and ShouldFinalize flips false again.
	st.Finalized = l.convergedLocked(st, l.cfg.ConfidenceLevel)
	st.UpdatedAt = l.now()

	l.persistLocked()

	log.Debug().
		Str("component", component).
		Bool("success", success).
		Int("trials", st.Trials).
		Float64("interval_width", st.Interval.Width()).
		Msg("recorded trade outcome")
}

// ShouldFinalize reports whether the component's success probability is
// known tightly enough to stop exploring: at least MinTrials outcomes and
// a Wilson interval narrower than MaxIntervalWidth.
func (l *Learner) ShouldFinalize(component string, confidenceLevel float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[component]
	if !ok || l.degraded {
		return false
	}
	return l.convergedLocked(st, confidenceLevel)
}

func (l *Learner) convergedLocked(st *ComponentState, confidenceLevel float64) bool {
	if st.Trials < l.cfg.MinTrials {
		return false
	}
	iv := wilson(st.Successes, st.Trials, confidenceLevel)
	return iv.Width() < l.cfg.MaxIntervalWidth
}

// Finalize promotes the proposed weight to the current weight. No-op for
// unknown components.
func (l *Learner) Finalize(component string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[component]
	if !ok || l.degraded {
		return
	}
	st.CurrentWeight = st.ProposedWeight
	st.Finalized = true
	st.UpdatedAt = l.now()
	l.persistLocked()
}

// OptimalWeight returns the weight the scorer should use right now:
// the converged current weight when the posterior has settled, otherwise a
// fresh exploratory sample. ok is false when the learner is degraded and
// no adaptive weight is available.
func (l *Learner) OptimalWeight(component string) (float64, models.WeightSource, bool) {
	l.mu.Lock()
	if l.degraded {
		l.mu.Unlock()
		return 0, models.WeightStatic, false
	}
	st := l.stateLocked(component)
	if st == nil {
		l.mu.Unlock()
		return 0, models.WeightStatic, false
	}
	if l.convergedLocked(st, l.cfg.ConfidenceLevel) {
		w := st.CurrentWeight
		l.mu.Unlock()
		return w, models.WeightLearned, true
	}

	s := sampleBeta(l.rng, st.Alpha, st.Beta)
	w := weightFromSample(s)
	st.ProposedWeight = w
	st.UpdatedAt = l.now()
	l.persistLocked()
	l.mu.Unlock()
	return w, models.WeightSampled, true
}

// Snapshot returns a copy of all component states for inspection surfaces
// (CLI table, HTTP diagnostics). History is omitted to keep it light.
func (l *Learner) Snapshot() map[string]ComponentState {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]ComponentState, len(l.states))
	for name, st := range l.states {
		cp := *st
		cp.History = nil
		out[name] = cp
	}
	return out
}

// stateLocked returns the component state, creating it on first reference.
// Returns nil in degraded mode. Caller holds the mutex.
func (l *Learner) stateLocked(component string) *ComponentState {
	if l.degraded {
		return nil
	}
	st, ok := l.states[component]
	if !ok {
		st = &ComponentState{
			Alpha:          1,
			Beta:           1,
			CurrentWeight:  1.0,
			ProposedWeight: 1.0,
			Interval:       WilsonInterval{Lower: 0, Upper: 1},
			UpdatedAt:      l.now(),
		}
		l.states[component] = st
	}
	return st
}

// persistLocked saves the state, logging instead of raising: a transient
// persistence failure must not halt the decision loop. Caller holds the
// mutex.
func (l *Learner) persistLocked() {
	if err := l.store.Save(l.states); err != nil {
		log.Error().Err(err).Msg("failed to persist bandit state")
	}
}
