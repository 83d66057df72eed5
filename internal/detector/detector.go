package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreyes86/poolwatch/internal/model"
)

type workerSource interface {
	ListWorkers(ctx context.Context, accountID int) ([]model.Worker, error)
}

type alertStore interface {
	Open(ctx context.Context, a *model.Alert) error
	Resolve(ctx context.Context, accountID int, subject, category string) error
	ListOpenByAccount(ctx context.Context, accountID int) ([]model.Alert, error)
}

// Thresholds are the detector's tunables. Zero values disable the
// corresponding check.
type Thresholds struct {
	// OfflineAfter flags a worker whose last share is older than this.
	OfflineAfter time.Duration
	// LowHashrateRatio flags a worker whose 1h rate dropped below this
	// fraction of its 1d baseline.
	LowHashrateRatio float64
	// RejectRateLimit flags a worker whose reject percentage exceeds
	// this.
	RejectRateLimit float64
}

// Summary counts one evaluation pass.
type Summary struct {
	AccountsChecked int `json:"accounts_checked"`
	WorkersChecked  int `json:"workers_checked"`
	Opened          int `json:"opened"`
	Resolved        int `json:"resolved"`
}

// Detector evaluates the latest worker state against thresholds and
// keeps the open-alert set in sync: a condition opens one alert and a
// later clean observation resolves it. It reads only parsed state,
// never raw captures.
type Detector struct {
	workers workerSource
	alerts  alertStore
	logger  *slog.Logger

	thresholds Thresholds
	now        func() time.Time
}

func New(workers workerSource, alerts alertStore, thresholds Thresholds, logger *slog.Logger) *Detector {
	return &Detector{
		workers:    workers,
		alerts:     alerts,
		logger:     logger,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate runs the checks for a set of accounts.
func (d *Detector) Evaluate(ctx context.Context, accountIDs []int) (*Summary, error) {
	sum := &Summary{}
	for _, id := range accountIDs {
		if err := d.evaluateAccount(ctx, id, sum); err != nil {
			return sum, fmt.Errorf("evaluate account %d: %w", id, err)
		}
		sum.AccountsChecked++
	}
	return sum, nil
}

func (d *Detector) evaluateAccount(ctx context.Context, accountID int, sum *Summary) error {
	workers, err := d.workers.ListWorkers(ctx, accountID)
	if err != nil {
		return err
	}

	open, err := d.alerts.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	openSet := make(map[string]bool, len(open))
	for _, a := range open {
		openSet[a.Subject+"\x00"+a.Category] = true
	}

	for _, w := range workers {
		sum.WorkersChecked++
		for _, f := range d.findings(w) {
			key := w.WorkerName + "\x00" + f.category
			if f.firing {
				if err := d.alerts.Open(ctx, &model.Alert{
					AccountID: accountID,
					Subject:   w.WorkerName,
					Category:  f.category,
					Severity:  f.severity,
					Message:   f.message,
				}); err != nil {
					return err
				}
				if !openSet[key] {
					sum.Opened++
					d.logger.Info("alert opened",
						"account_id", accountID, "worker", w.WorkerName,
						"category", f.category, "message", f.message)
				}
			} else if openSet[key] {
				if err := d.alerts.Resolve(ctx, accountID, w.WorkerName, f.category); err != nil {
					return err
				}
				sum.Resolved++
				d.logger.Info("alert resolved",
					"account_id", accountID, "worker", w.WorkerName,
					"category", f.category)
			}
		}
	}
	return nil
}

type finding struct {
	category string
	severity string
	message  string
	firing   bool
}

// findings runs every check against one worker and reports each check's
// state, firing or clear, so cleared conditions resolve their alerts.
func (d *Detector) findings(w model.Worker) []finding {
	var out []finding

	if d.thresholds.OfflineAfter > 0 {
		f := finding{category: model.AlertOffline, severity: model.SeverityCritical}
		switch {
		case w.LastShareTime == nil:
			// Never seen a share: offline only if the pool says so.
			f.firing = w.Status == "offline" || w.Status == "dead"
			f.message = fmt.Sprintf("worker %s has no recorded shares", w.WorkerName)
		case d.now().Sub(*w.LastShareTime) > d.thresholds.OfflineAfter:
			f.firing = true
			f.message = fmt.Sprintf("worker %s last share %s ago",
				w.WorkerName, d.now().Sub(*w.LastShareTime).Round(time.Minute))
		}
		out = append(out, f)
	}

	if d.thresholds.LowHashrateRatio > 0 && w.Hashrate1D > 0 {
		f := finding{category: model.AlertLowHashrate, severity: model.SeverityWarning}
		floor := float64(w.Hashrate1D) * d.thresholds.LowHashrateRatio
		if float64(w.Hashrate1H) < floor {
			f.firing = true
			f.message = fmt.Sprintf("worker %s hashrate dropped to %d H/s (1d baseline %d H/s)",
				w.WorkerName, w.Hashrate1H, w.Hashrate1D)
		}
		out = append(out, f)
	}

	if d.thresholds.RejectRateLimit > 0 {
		f := finding{category: model.AlertHighRejectRate, severity: model.SeverityWarning}
		if w.RejectRate > d.thresholds.RejectRateLimit {
			f.firing = true
			f.message = fmt.Sprintf("worker %s reject rate %.2f%% exceeds %.2f%%",
				w.WorkerName, w.RejectRate, d.thresholds.RejectRateLimit)
		}
		out = append(out, f)
	}

	return out
}
