package persistence

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal is the in-process Repository used in tests and offline
// scans where no database is configured.
type MemoryJournal struct {
	mu        sync.Mutex
	decisions []DecisionRecord
	outcomes  []OutcomeRecord
	nextID    int64
}

// NewMemoryJournal returns an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1}
}

// Repository exposes the journal through the standard repo bundle.
func (j *MemoryJournal) Repository() *Repository {
	return &Repository{Decisions: (*memoryDecisionsRepo)(j), Outcomes: (*memoryOutcomesRepo)(j)}
}

type memoryDecisionsRepo MemoryJournal

func (r *memoryDecisionsRepo) Insert(_ context.Context, rec DecisionRecord) error {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.ID = j.nextID
	j.nextID++
	j.decisions = append(j.decisions, rec)
	return nil
}

func (r *memoryDecisionsRepo) ListByInstrument(_ context.Context, instrument string, tr TimeRange, limit int) ([]DecisionRecord, error) {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []DecisionRecord
	for i := len(j.decisions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := j.decisions[i]
		if rec.Instrument != instrument || !inRange(rec.Timestamp, tr) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryDecisionsRepo) RejectionCounts(_ context.Context, tr TimeRange) (map[string]int64, error) {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	counts := make(map[string]int64)
	for _, rec := range j.decisions {
		if rec.Accepted || !inRange(rec.Timestamp, tr) {
			continue
		}
		counts[rec.Reason]++
	}
	return counts, nil
}

type memoryOutcomesRepo MemoryJournal

func (r *memoryOutcomesRepo) Insert(_ context.Context, rec OutcomeRecord) error {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.ID = j.nextID
	j.nextID++
	j.outcomes = append(j.outcomes, rec)
	return nil
}

func (r *memoryOutcomesRepo) ListByComponent(_ context.Context, component string, tr TimeRange, limit int) ([]OutcomeRecord, error) {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []OutcomeRecord
	for i := len(j.outcomes) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := j.outcomes[i]
		if rec.Component != component || !inRange(rec.Timestamp, tr) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryOutcomesRepo) SuccessRate(_ context.Context, component string, tr TimeRange) (int64, int64, error) {
	j := (*MemoryJournal)(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	var successes, trials int64
	for _, rec := range j.outcomes {
		if rec.Component != component || !inRange(rec.Timestamp, tr) {
			continue
		}
		trials++
		if rec.Success {
			successes++
		}
	}
	return successes, trials, nil
}

func inRange(t time.Time, tr TimeRange) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}
