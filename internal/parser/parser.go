package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreyes86/poolwatch/internal/model"
)

type captureQueue interface {
	ListPending(ctx context.Context, limit int) ([]model.RawCapture, error)
	ListFailed(ctx context.Context, limit, maxRetry int) ([]model.RawCapture, error)
	Mark(ctx context.Context, id int64, outcome string, records int, parseErr string) error
}

type snapshotStore interface {
	InsertBalance(ctx context.Context, b *model.BalanceSnapshot) error
	InsertHashrate(ctx context.Context, h *model.HashrateSnapshot) error
	UpsertWorkers(ctx context.Context, workers []model.Worker) (int, error)
	UpsertPayment(ctx context.Context, p *model.Payment) error
}

type attemptLog interface {
	Record(ctx context.Context, a *model.ProcessingAttempt) error
}

// Result summarizes one parse pass.
type Result struct {
	Scanned    int   `json:"scanned"`
	Done       int   `json:"done"`
	Failed     int   `json:"failed"`
	Records    int   `json:"records"`
	DurationMS int64 `json:"duration_ms"`
}

// Parser interprets stored captures into structured rows, decoupled
// from collection. It never mutates payloads; a capture that fails to
// parse is marked failed with the reason and stays available for
// reprocessing after a parser fix. All writes are keyed upserts, so
// re-parsing the same capture converges to the same rows.
type Parser struct {
	captures  captureQueue
	snapshots snapshotStore
	attempts  attemptLog
	logger    *slog.Logger

	// coin used when a payload does not name one.
	coin string
}

func New(captures captureQueue, snapshots snapshotStore, attempts attemptLog, coin string, logger *slog.Logger) *Parser {
	return &Parser{
		captures:  captures,
		snapshots: snapshots,
		attempts:  attempts,
		coin:      coin,
		logger:    logger,
	}
}

// ProcessBatch interprets up to limit pending captures, oldest first.
func (p *Parser) ProcessBatch(ctx context.Context, limit int) (*Result, error) {
	captures, err := p.captures.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending captures: %w", err)
	}
	return p.processAll(ctx, captures)
}

// ReprocessFailed retries captures whose parsing failed fewer than
// maxRetry times. Useful after a parser fix: the payloads are still
// there.
func (p *Parser) ReprocessFailed(ctx context.Context, limit, maxRetry int) (*Result, error) {
	captures, err := p.captures.ListFailed(ctx, limit, maxRetry)
	if err != nil {
		return nil, fmt.Errorf("list failed captures: %w", err)
	}
	return p.processAll(ctx, captures)
}

func (p *Parser) processAll(ctx context.Context, captures []model.RawCapture) (*Result, error) {
	start := time.Now()
	res := &Result{Scanned: len(captures)}

	for _, c := range captures {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		stepStart := time.Now()
		records, parseErr := p.interpret(ctx, &c)

		outcome := model.CaptureDone
		attemptOutcome := model.AttemptCompleted
		errText := ""
		if parseErr != nil {
			outcome = model.CaptureFailed
			attemptOutcome = model.AttemptFailed
			errText = parseErr.Error()
			res.Failed++
			p.logger.Warn("capture parse failed",
				"capture_id", c.ID, "endpoint", c.Endpoint, "error", parseErr)
		} else {
			res.Done++
			res.Records += records
		}

		if err := p.captures.Mark(ctx, c.ID, outcome, records, errText); err != nil {
			return res, fmt.Errorf("mark capture %d: %w", c.ID, err)
		}
		if err := p.attempts.Record(ctx, &model.ProcessingAttempt{
			CaptureID:  c.ID,
			Step:       c.Endpoint,
			Outcome:    attemptOutcome,
			Records:    records,
			ErrorText:  errText,
			DurationMS: time.Since(stepStart).Milliseconds(),
		}); err != nil {
			// Audit rows are best effort; losing one is not worth
			// aborting the batch.
			p.logger.Warn("record processing attempt", "capture_id", c.ID, "error", err)
		}
	}

	res.DurationMS = time.Since(start).Milliseconds()
	return res, nil
}

// envelope is the API wrapper stored inside every successful capture.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// interpret dispatches one capture to its endpoint-specific
// interpretation. Returns how many structured records were written.
func (p *Parser) interpret(ctx context.Context, c *model.RawCapture) (int, error) {
	if c.CallError != "" {
		return 0, fmt.Errorf("capture holds a failed call: %s", c.CallError)
	}

	var env envelope
	if err := json.Unmarshal([]byte(c.Payload), &env); err != nil {
		return 0, fmt.Errorf("invalid JSON envelope: %w", err)
	}
	if env.Code != 0 {
		return 0, fmt.Errorf("remote code %d: %s", env.Code, env.Message)
	}

	switch c.Endpoint {
	case "account":
		return p.interpretBalance(ctx, c, env.Data)
	case "hashrate":
		return p.interpretHashrate(ctx, c, env.Data)
	case "accountOverview":
		return p.interpretOverview(ctx, c, env.Data)
	case "userWorkerList":
		return p.interpretWorkers(ctx, c, env.Data)
	case "paymentHistoryV2":
		return p.interpretPayments(ctx, c, env.Data)
	case "poolStats":
		// Pool-wide statistics are kept raw for now; there is no
		// structured table for them.
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown endpoint %q", c.Endpoint)
	}
}

func (p *Parser) interpretBalance(ctx context.Context, c *model.RawCapture, data json.RawMessage) (int, error) {
	var payload struct {
		Coin        string `json:"coin"`
		Balance     string `json:"balance"`
		EarnTotal   string `json:"earnTotal"`
		Earn24Hours string `json:"earn24Hours"`
		PaidOut     string `json:"paidOut"`
		SettleTime  string `json:"settleTime"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("account payload: %w", err)
	}

	balance, err := parseAmount(payload.Balance)
	if err != nil {
		return 0, fmt.Errorf("account balance: %w", err)
	}
	earnTotal, err := parseAmount(payload.EarnTotal)
	if err != nil {
		return 0, fmt.Errorf("account earnTotal: %w", err)
	}
	earn24, err := parseAmount(payload.Earn24Hours)
	if err != nil {
		return 0, fmt.Errorf("account earn24Hours: %w", err)
	}
	paidOut, err := parseAmount(payload.PaidOut)
	if err != nil {
		return 0, fmt.Errorf("account paidOut: %w", err)
	}

	snap := &model.BalanceSnapshot{
		AccountID:   c.AccountID,
		Coin:        p.coinOr(payload.Coin),
		Balance:     balance,
		EarnTotal:   earnTotal,
		Earn24Hours: earn24,
		PaidOut:     paidOut,
		SettleTime:  payload.SettleTime,
		ObservedAt:  c.CreatedAt,
	}
	if err := p.snapshots.InsertBalance(ctx, snap); err != nil {
		return 0, fmt.Errorf("insert balance snapshot: %w", err)
	}
	return 1, nil
}

func (p *Parser) interpretHashrate(ctx context.Context, c *model.RawCapture, data json.RawMessage) (int, error) {
	var payload struct {
		Coin          string `json:"coin"`
		Last10M       string `json:"last10m"`
		Last1H        string `json:"last1h"`
		Last1D        string `json:"last1d"`
		TotalWorkers  int    `json:"totalWorkers"`
		ActiveWorkers int    `json:"activeWorkers"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("hashrate payload: %w", err)
	}

	hs10m, err := parseHashrate(payload.Last10M)
	if err != nil {
		return 0, err
	}
	hs1h, err := parseHashrate(payload.Last1H)
	if err != nil {
		return 0, err
	}
	hs1d, err := parseHashrate(payload.Last1D)
	if err != nil {
		return 0, err
	}

	snap := &model.HashrateSnapshot{
		AccountID:     c.AccountID,
		Coin:          p.coinOr(payload.Coin),
		Hashrate10M:   hs10m,
		Hashrate1H:    hs1h,
		Hashrate1D:    hs1d,
		TotalWorkers:  payload.TotalWorkers,
		ActiveWorkers: payload.ActiveWorkers,
		ObservedAt:    c.CreatedAt,
	}
	if err := p.snapshots.InsertHashrate(ctx, snap); err != nil {
		return 0, fmt.Errorf("insert hashrate snapshot: %w", err)
	}
	return 1, nil
}

// interpretOverview stores the overview's hashrate and worker counts as
// a hashrate snapshot: same shape, hourly cadence.
func (p *Parser) interpretOverview(ctx context.Context, c *model.RawCapture, data json.RawMessage) (int, error) {
	var payload struct {
		Coin            string `json:"coin"`
		HsLast1H        string `json:"hsLast1h"`
		HsLast1D        string `json:"hsLast1d"`
		TotalWorkerNum  int    `json:"totalWorkerNum"`
		ActiveWorkerNum int    `json:"activeWorkerNum"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("overview payload: %w", err)
	}

	hs1h, err := parseHashrate(payload.HsLast1H)
	if err != nil {
		return 0, err
	}
	hs1d, err := parseHashrate(payload.HsLast1D)
	if err != nil {
		return 0, err
	}

	snap := &model.HashrateSnapshot{
		AccountID:     c.AccountID,
		Coin:          p.coinOr(payload.Coin),
		Hashrate1H:    hs1h,
		Hashrate1D:    hs1d,
		TotalWorkers:  payload.TotalWorkerNum,
		ActiveWorkers: payload.ActiveWorkerNum,
		ObservedAt:    c.CreatedAt,
	}
	if err := p.snapshots.InsertHashrate(ctx, snap); err != nil {
		return 0, fmt.Errorf("insert overview snapshot: %w", err)
	}
	return 1, nil
}

func (p *Parser) interpretWorkers(ctx context.Context, c *model.RawCapture, data json.RawMessage) (int, error) {
	var payload struct {
		Result struct {
			Rows []struct {
				WorkerID      string          `json:"workerId"`
				WorkerStatus  string          `json:"workerStatus"`
				HsLast1H      string          `json:"hsLast1h"`
				HsLast1D      string          `json:"hsLast1d"`
				RejectRatio   string          `json:"rejectRatio"`
				LastShareTime json.RawMessage `json:"lastShareTime"`
			} `json:"rows"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("worker list payload: %w", err)
	}

	workers := make([]model.Worker, 0, len(payload.Result.Rows))
	for i, row := range payload.Result.Rows {
		if row.WorkerID == "" {
			return 0, fmt.Errorf("worker row %d: missing workerId", i)
		}
		hs1h, err := parseHashrate(row.HsLast1H)
		if err != nil {
			return 0, fmt.Errorf("worker %s: %w", row.WorkerID, err)
		}
		hs1d, err := parseHashrate(row.HsLast1D)
		if err != nil {
			return 0, fmt.Errorf("worker %s: %w", row.WorkerID, err)
		}
		reject, err := parsePercent(row.RejectRatio)
		if err != nil {
			return 0, fmt.Errorf("worker %s: %w", row.WorkerID, err)
		}
		lastShare, err := parseTime(row.LastShareTime)
		if err != nil {
			return 0, fmt.Errorf("worker %s: %w", row.WorkerID, err)
		}

		status := row.WorkerStatus
		if status == "" {
			status = "unknown"
		}
		workers = append(workers, model.Worker{
			AccountID:     c.AccountID,
			WorkerName:    row.WorkerID,
			Status:        status,
			Hashrate1H:    hs1h,
			Hashrate1D:    hs1d,
			RejectRate:    reject,
			LastShareTime: lastShare,
		})
	}

	n, err := p.snapshots.UpsertWorkers(ctx, workers)
	if err != nil {
		return n, fmt.Errorf("upsert workers: %w", err)
	}
	return n, nil
}

func (p *Parser) interpretPayments(ctx context.Context, c *model.RawCapture, data json.RawMessage) (int, error) {
	var payload struct {
		Rows []struct {
			Coin      string          `json:"coin"`
			Type      string          `json:"type"`
			Amount    string          `json:"amount"`
			TxID      string          `json:"txId"`
			Timestamp json.RawMessage `json:"timestamp"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("payment payload: %w", err)
	}

	count := 0
	for i, row := range payload.Rows {
		amount, err := parseAmount(row.Amount)
		if err != nil {
			return count, fmt.Errorf("payment row %d: %w", i, err)
		}
		paidAt, err := parseTime(row.Timestamp)
		if err != nil {
			return count, fmt.Errorf("payment row %d: %w", i, err)
		}
		if paidAt == nil {
			return count, fmt.Errorf("payment row %d: missing timestamp", i)
		}

		paymentType := row.Type
		if paymentType == "" {
			paymentType = "payout"
		}
		payment := &model.Payment{
			AccountID:   c.AccountID,
			Coin:        p.coinOr(row.Coin),
			PaymentType: paymentType,
			Amount:      amount,
			TxID:        row.TxID,
			PaymentTime: *paidAt,
		}
		if err := p.snapshots.UpsertPayment(ctx, payment); err != nil {
			return count, fmt.Errorf("upsert payment: %w", err)
		}
		count++
	}
	return count, nil
}

func (p *Parser) coinOr(coin string) string {
	if coin != "" {
		return coin
	}
	return p.coin
}
