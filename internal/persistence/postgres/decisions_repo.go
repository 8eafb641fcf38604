package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/flowrank/flowrank/internal/gates"
	"github.com/flowrank/flowrank/internal/persistence"
)

type decisionsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDecisionsRepo creates the PostgreSQL decisions journal.
func NewDecisionsRepo(db *sqlx.DB, timeout time.Duration) persistence.DecisionsRepo {
	return &decisionsRepo{db: db, timeout: timeout}
}

func (r *decisionsRepo) Insert(ctx context.Context, rec persistence.DecisionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	checksJSON, err := json.Marshal(rec.Checks)
	if err != nil {
		return fmt.Errorf("marshal gate checks: %w", err)
	}

	query := `
		INSERT INTO decisions (ts, instrument, mode, score, accepted, reason, checks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		rec.Timestamp, rec.Instrument, rec.Mode, rec.Score,
		rec.Accepted, rec.Reason, checksJSON).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate decision: %w", err)
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (r *decisionsRepo) ListByInstrument(ctx context.Context, instrument string, tr persistence.TimeRange, limit int) ([]persistence.DecisionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, instrument, mode, score, accepted, reason, checks, created_at
		FROM decisions
		WHERE instrument = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, instrument, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []persistence.DecisionRecord
	for rows.Next() {
		var rec persistence.DecisionRecord
		var checksJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Instrument, &rec.Mode,
			&rec.Score, &rec.Accepted, &rec.Reason, &checksJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if len(checksJSON) > 0 {
			if err := json.Unmarshal(checksJSON, &rec.Checks); err != nil {
				return nil, fmt.Errorf("unmarshal gate checks: %w", err)
			}
		} else {
			rec.Checks = []gates.GateCheck{}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

func (r *decisionsRepo) RejectionCounts(ctx context.Context, tr persistence.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT reason, COUNT(*)
		FROM decisions
		WHERE accepted = FALSE AND ts >= $1 AND ts <= $2
		GROUP BY reason
		ORDER BY reason`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("count rejections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("scan rejection count: %w", err)
		}
		counts[reason] = count
	}
	return counts, rows.Err()
}
