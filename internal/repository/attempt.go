package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/model"
)

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Record appends one audit row. Attempts are observability only and are
// never read back into control flow.
func (r *AttemptRepository) Record(ctx context.Context, a *model.ProcessingAttempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO processing_attempts
			(capture_id, step, outcome, records, error_text, duration_ms)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		a.CaptureID, a.Step, a.Outcome, a.Records, a.ErrorText, a.DurationMS,
	)
	return err
}
