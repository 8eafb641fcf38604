package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flowrank/flowrank/internal/persistence"
)

type outcomesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOutcomesRepo creates the PostgreSQL outcomes journal.
func NewOutcomesRepo(db *sqlx.DB, timeout time.Duration) persistence.OutcomesRepo {
	return &outcomesRepo{db: db, timeout: timeout}
}

func (r *outcomesRepo) Insert(ctx context.Context, rec persistence.OutcomeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO outcomes (ts, component, weight, pnl_pct, success)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		rec.Timestamp, rec.Component, rec.Weight, rec.PnLPct, rec.Success).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (r *outcomesRepo) ListByComponent(ctx context.Context, component string, tr persistence.TimeRange, limit int) ([]persistence.OutcomeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, component, weight, pnl_pct, success, created_at
		FROM outcomes
		WHERE component = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4`

	var out []persistence.OutcomeRecord
	if err := r.db.SelectContext(ctx, &out, query, component, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	return out, nil
}

func (r *outcomesRepo) SuccessRate(ctx context.Context, component string, tr persistence.TimeRange) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*) FILTER (WHERE success), COUNT(*)
		FROM outcomes
		WHERE component = $1 AND ts >= $2 AND ts <= $3`

	var successes, trials int64
	err := r.db.QueryRowxContext(ctx, query, component, tr.From, tr.To).Scan(&successes, &trials)
	if err != nil {
		return 0, 0, fmt.Errorf("count outcomes: %w", err)
	}
	return successes, trials, nil
}
