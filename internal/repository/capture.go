package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/model"
)

type CaptureRepository struct {
	pool *pgxpool.Pool
}

func NewCaptureRepository(pool *pgxpool.Pool) *CaptureRepository {
	return &CaptureRepository{pool: pool}
}

// Record durably stores one raw response, success or failure, before any
// interpretation happens. Malformed content is stored as-is. Captures of
// failed calls arrive pre-marked failed so the parser never queues them.
func (r *CaptureRepository) Record(ctx context.Context, c *model.RawCapture) (int64, error) {
	processed := c.Processed
	if processed == "" {
		processed = model.CapturePending
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO raw_captures
			(account_id, account_name, endpoint, payload, byte_size, item_count,
			 status_code, duration_ms, call_error, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
		 RETURNING id`,
		c.AccountID, c.AccountName, c.Endpoint, c.Payload, c.ByteSize, c.ItemCount,
		c.StatusCode, c.DurationMS, c.CallError, processed,
	).Scan(&id)
	return id, err
}

// ListPending returns unprocessed captures, oldest first.
func (r *CaptureRepository) ListPending(ctx context.Context, limit int) ([]model.RawCapture, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, account_name, endpoint, payload, byte_size, item_count,
			status_code, duration_ms, COALESCE(call_error, ''), processed, retry_count,
			COALESCE(parse_error, ''), created_at
		 FROM raw_captures
		 WHERE processed = 'pending'
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCaptures(rows)
}

// ListFailed returns captures whose parsing failed fewer than maxRetry
// times, oldest first, for reprocessing. Captures of failed calls are
// excluded; there is nothing to reinterpret in them.
func (r *CaptureRepository) ListFailed(ctx context.Context, limit, maxRetry int) ([]model.RawCapture, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, account_name, endpoint, payload, byte_size, item_count,
			status_code, duration_ms, COALESCE(call_error, ''), processed, retry_count,
			COALESCE(parse_error, ''), created_at
		 FROM raw_captures
		 WHERE processed = 'failed' AND call_error IS NULL AND retry_count < $2
		 ORDER BY created_at
		 LIMIT $1`, limit, maxRetry)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCaptures(rows)
}

// Mark transitions a capture to done or failed. Re-marking a capture that
// is already done is a no-op, so reprocessing is idempotent. The payload
// is never touched.
func (r *CaptureRepository) Mark(ctx context.Context, id int64, outcome string, records int, parseErr string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE raw_captures SET
			processed = $2,
			item_count = GREATEST(item_count, $3),
			parse_error = NULLIF($4, ''),
			retry_count = retry_count + CASE WHEN $2 = 'failed' THEN 1 ELSE 0 END,
			processed_at = now()
		 WHERE id = $1 AND processed <> 'done'`,
		id, outcome, records, parseErr,
	)
	return err
}

// CountPending reports the parse backlog for the status endpoint.
func (r *CaptureRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM raw_captures WHERE processed = 'pending'`).Scan(&n)
	return n, err
}

// PruneProcessed deletes done captures older than the cutoff. Part of the
// maintenance tier's retention pass; pending and failed rows are kept.
func (r *CaptureRepository) PruneProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM raw_captures WHERE processed = 'done' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type captureRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCaptures(rows captureRows) ([]model.RawCapture, error) {
	var captures []model.RawCapture
	for rows.Next() {
		var c model.RawCapture
		if err := rows.Scan(
			&c.ID, &c.AccountID, &c.AccountName, &c.Endpoint, &c.Payload, &c.ByteSize,
			&c.ItemCount, &c.StatusCode, &c.DurationMS, &c.CallError, &c.Processed,
			&c.RetryCount, &c.ParseError, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}
