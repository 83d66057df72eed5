package model

import "time"

// BalanceSnapshot is one account-level balance reading.
type BalanceSnapshot struct {
	ID          int64     `json:"id"`
	AccountID   int       `json:"account_id"`
	Coin        string    `json:"coin"`
	Balance     float64   `json:"balance"`
	EarnTotal   float64   `json:"earn_total"`
	Earn24Hours float64   `json:"earn_24_hours"`
	PaidOut     float64   `json:"paid_out"`
	SettleTime  string    `json:"settle_time,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// HashrateSnapshot is one account-level hashrate reading.
type HashrateSnapshot struct {
	ID            int64     `json:"id"`
	AccountID     int       `json:"account_id"`
	Coin          string    `json:"coin"`
	Hashrate10M   int64     `json:"hashrate_10m"`
	Hashrate1H    int64     `json:"hashrate_1h"`
	Hashrate1D    int64     `json:"hashrate_1d"`
	TotalWorkers  int       `json:"total_workers"`
	ActiveWorkers int       `json:"active_workers"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Worker is the latest known state of one mining worker. Rows are
// upserted on (account_id, worker_name); re-parsing the same capture
// converges to the same row.
type Worker struct {
	ID            int64      `json:"id"`
	AccountID     int        `json:"account_id"`
	WorkerName    string     `json:"worker_name"`
	Status        string     `json:"status"`
	Hashrate1H    int64      `json:"hashrate_1h"`
	Hashrate1D    int64      `json:"hashrate_1d"`
	RejectRate    float64    `json:"reject_rate"`
	LastShareTime *time.Time `json:"last_share_time,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Payment is one payout record. Unique on
// (account_id, coin, payment_time, payment_type).
type Payment struct {
	ID          int64     `json:"id"`
	AccountID   int       `json:"account_id"`
	Coin        string    `json:"coin"`
	PaymentType string    `json:"payment_type"`
	Amount      float64   `json:"amount"`
	TxID        string    `json:"tx_id,omitempty"`
	PaymentTime time.Time `json:"payment_time"`
	CreatedAt   time.Time `json:"created_at"`
}
