package persistence

import (
	"context"
	"time"

	"github.com/flowrank/flowrank/internal/gates"
)

// DecisionRecord is one gate decision as journaled for shadow analysis.
type DecisionRecord struct {
	ID         int64             `db:"id" json:"id"`
	Timestamp  time.Time         `db:"ts" json:"timestamp"`
	Instrument string            `db:"instrument" json:"instrument"`
	Mode       string            `db:"mode" json:"mode"`
	Score      float64           `db:"score" json:"score"`
	Accepted   bool              `db:"accepted" json:"accepted"`
	Reason     string            `db:"reason" json:"reason,omitempty"`
	Checks     []gates.GateCheck `db:"-" json:"checks"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// OutcomeRecord is one realized trade outcome fed back into the learner.
type OutcomeRecord struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
	Component string    `db:"component" json:"component"`
	Weight    float64   `db:"weight" json:"weight"`
	PnLPct    float64   `db:"pnl_pct" json:"pnl_pct"`
	Success   bool      `db:"success" json:"success"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimeRange bounds a journal query, inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// DecisionsRepo journals gate decisions.
type DecisionsRepo interface {
	Insert(ctx context.Context, rec DecisionRecord) error
	ListByInstrument(ctx context.Context, instrument string, tr TimeRange, limit int) ([]DecisionRecord, error)
	RejectionCounts(ctx context.Context, tr TimeRange) (map[string]int64, error)
}

// OutcomesRepo journals realized trade outcomes per component.
type OutcomesRepo interface {
	Insert(ctx context.Context, rec OutcomeRecord) error
	ListByComponent(ctx context.Context, component string, tr TimeRange, limit int) ([]OutcomeRecord, error)
	SuccessRate(ctx context.Context, component string, tr TimeRange) (successes, trials int64, err error)
}

// Repository bundles the journal repos behind one handle.
type Repository struct {
	Decisions DecisionsRepo
	Outcomes  OutcomesRepo
}
