package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/model"
)

type AlertRepository struct {
	pool *pgxpool.Pool
}

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// Open creates an unresolved alert unless one already exists for the same
// (account, subject, category). Flapping conditions therefore keep one
// open row instead of stacking duplicates.
func (r *AlertRepository) Open(ctx context.Context, a *model.Alert) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO worker_alerts (account_id, subject, category, severity, message)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id, subject, category) WHERE NOT resolved DO NOTHING`,
		a.AccountID, a.Subject, a.Category, a.Severity, a.Message,
	)
	return err
}

// Resolve closes the open alert for the subject/category, if any.
func (r *AlertRepository) Resolve(ctx context.Context, accountID int, subject, category string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE worker_alerts
		 SET resolved = TRUE, resolved_at = now()
		 WHERE account_id = $1 AND subject = $2 AND category = $3 AND NOT resolved`,
		accountID, subject, category,
	)
	return err
}

// ListOpenByAccount returns the open alerts for one account, keyed by
// subject and category, so the detector can resolve cleared conditions.
func (r *AlertRepository) ListOpenByAccount(ctx context.Context, accountID int) ([]model.Alert, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, subject, category, severity, message, resolved, resolved_at, created_at
		 FROM worker_alerts
		 WHERE account_id = $1 AND NOT resolved
		 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(
			&a.ID, &a.AccountID, &a.Subject, &a.Category, &a.Severity,
			&a.Message, &a.Resolved, &a.ResolvedAt, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AccountIDsWithOpen returns the accounts that currently have unresolved
// alerts. This is the deep-analysis tier's account selection.
func (r *AlertRepository) AccountIDsWithOpen(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT account_id FROM worker_alerts WHERE NOT resolved`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AlertRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM worker_alerts WHERE NOT resolved`).Scan(&n)
	return n, err
}

// PruneResolved deletes resolved alerts older than the cutoff.
func (r *AlertRepository) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM worker_alerts WHERE resolved AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
