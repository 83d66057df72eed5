package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/model"
)

// SnapshotRepository owns the structured per-domain tables the parser
// writes into. Every write is an upsert keyed so that re-parsing the
// same capture converges to the same rows.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) InsertBalance(ctx context.Context, b *model.BalanceSnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balance_snapshots
			(account_id, coin, balance, earn_total, earn_24_hours, paid_out, settle_time, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		 ON CONFLICT (account_id, coin, observed_at) DO NOTHING`,
		b.AccountID, b.Coin, b.Balance, b.EarnTotal, b.Earn24Hours, b.PaidOut,
		b.SettleTime, b.ObservedAt,
	)
	return err
}

func (r *SnapshotRepository) InsertHashrate(ctx context.Context, h *model.HashrateSnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO hashrate_snapshots
			(account_id, coin, hashrate_10m, hashrate_1h, hashrate_1d,
			 total_workers, active_workers, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (account_id, coin, observed_at) DO NOTHING`,
		h.AccountID, h.Coin, h.Hashrate10M, h.Hashrate1H, h.Hashrate1D,
		h.TotalWorkers, h.ActiveWorkers, h.ObservedAt,
	)
	return err
}

// UpsertWorkers writes the latest state for each worker. One row per
// (account, worker); repeated parses of the same payload are no-ops
// beyond refreshing updated_at.
func (r *SnapshotRepository) UpsertWorkers(ctx context.Context, workers []model.Worker) (int, error) {
	count := 0
	for _, w := range workers {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO workers
				(account_id, worker_name, status, hashrate_1h, hashrate_1d,
				 reject_rate, last_share_time, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			 ON CONFLICT (account_id, worker_name) DO UPDATE SET
				status = EXCLUDED.status,
				hashrate_1h = EXCLUDED.hashrate_1h,
				hashrate_1d = EXCLUDED.hashrate_1d,
				reject_rate = EXCLUDED.reject_rate,
				last_share_time = EXCLUDED.last_share_time,
				updated_at = now()`,
			w.AccountID, w.WorkerName, w.Status, w.Hashrate1H, w.Hashrate1D,
			w.RejectRate, w.LastShareTime,
		)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (r *SnapshotRepository) UpsertPayment(ctx context.Context, p *model.Payment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payments
			(account_id, coin, payment_type, amount, tx_id, payment_time)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		 ON CONFLICT (account_id, coin, payment_type, payment_time) DO NOTHING`,
		p.AccountID, p.Coin, p.PaymentType, p.Amount, p.TxID, p.PaymentTime,
	)
	return err
}

// ListWorkers returns the latest worker state for one account. This is
// the detector's input.
func (r *SnapshotRepository) ListWorkers(ctx context.Context, accountID int) ([]model.Worker, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, worker_name, status, hashrate_1h, hashrate_1d,
			reject_rate, last_share_time, updated_at
		 FROM workers
		 WHERE account_id = $1
		 ORDER BY worker_name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(
			&w.ID, &w.AccountID, &w.WorkerName, &w.Status, &w.Hashrate1H,
			&w.Hashrate1D, &w.RejectRate, &w.LastShareTime, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}
