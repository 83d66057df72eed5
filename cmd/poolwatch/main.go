package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreyes86/poolwatch/internal/antpool"
	"github.com/dreyes86/poolwatch/internal/collector"
	"github.com/dreyes86/poolwatch/internal/config"
	"github.com/dreyes86/poolwatch/internal/credentials"
	"github.com/dreyes86/poolwatch/internal/database"
	"github.com/dreyes86/poolwatch/internal/detector"
	"github.com/dreyes86/poolwatch/internal/handler"
	"github.com/dreyes86/poolwatch/internal/middleware"
	"github.com/dreyes86/poolwatch/internal/parser"
	"github.com/dreyes86/poolwatch/internal/ratelimit"
	"github.com/dreyes86/poolwatch/internal/repository"
	"github.com/dreyes86/poolwatch/internal/scheduler"
)

// Exit codes: 0 clean, 1 fatal, 2 completed with partial account
// failures.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: poolwatch <command>

commands:
  essentials    collect balance and hashrate for every account
  overview      collect account overview and worker summary
  deep          walk the full worker list for flagged accounts
  maintenance   collect payments and pool stats, then prune old data
  parse         interpret stored captures and evaluate alerts
  serve         run all tiers on cron cadences with a status server`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if len(args) < 1 {
		usage()
		return exitFatal
	}
	command := args[0]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		return exitFatal
	}

	pool, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		return exitFatal
	}
	defer pool.Close()

	if err := database.Migrate(pool); err != nil {
		slog.Error("migration failed", "error", err)
		return exitFatal
	}

	a := newApp(cfg, pool)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if tier, ok := collector.TierByName(command); ok {
		return a.runTier(ctx, tier)
	}
	switch command {
	case "parse":
		return a.runParse(ctx)
	case "serve":
		return a.serve(ctx)
	default:
		usage()
		return exitFatal
	}
}

type app struct {
	cfg      *config.Config
	governor *ratelimit.Governor

	orchestrator *collector.Orchestrator
	parser       *parser.Parser
	detector     *detector.Detector

	accounts *repository.AccountRepository
	captures *repository.CaptureRepository
	alerts   *repository.AlertRepository
}

func newApp(cfg *config.Config, pool *pgxpool.Pool) *app {
	logger := slog.Default()

	accountRepo := repository.NewAccountRepository(pool)
	captureRepo := repository.NewCaptureRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)

	governor := ratelimit.NewGovernor(cfg.CallBudget, cfg.BudgetWindow)
	client := antpool.NewClient(antpool.WithBaseURL(cfg.BaseURL))

	return &app{
		cfg:      cfg,
		governor: governor,
		orchestrator: collector.New(
			client, credentials.EnvResolver{}, governor,
			captureRepo, accountRepo, alertRepo, cfg, logger,
		),
		parser: parser.New(captureRepo, snapshotRepo, attemptRepo, cfg.Coin, logger),
		detector: detector.New(snapshotRepo, alertRepo, detector.Thresholds{
			OfflineAfter:     cfg.OfflineAfter,
			LowHashrateRatio: cfg.LowHashrateRatio,
			RejectRateLimit:  cfg.RejectRateLimit,
		}, logger),
		accounts: accountRepo,
		captures: captureRepo,
		alerts:   alertRepo,
	}
}

func (a *app) runTier(ctx context.Context, tier collector.Tier) int {
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
	defer cancel()

	sum, err := a.orchestrator.Run(runCtx, tier)
	if err != nil {
		slog.Error("tier run failed", "tier", tier.Name, "error", err)
		return exitFatal
	}

	if tier.Name == collector.TierMaintenance.Name {
		a.retention(ctx)
	}

	printJSON(sum)
	if sum.Partial() {
		return exitPartial
	}
	return exitOK
}

func (a *app) runParse(ctx context.Context) int {
	res, err := a.parser.ProcessBatch(ctx, a.cfg.ParseBatchSize)
	if err != nil {
		slog.Error("parse batch failed", "error", err)
		return exitFatal
	}
	retried, err := a.parser.ReprocessFailed(ctx, a.cfg.ParseBatchSize, a.cfg.MaxParseRetry)
	if err != nil {
		slog.Error("reprocess failed captures", "error", err)
		return exitFatal
	}

	detection, err := a.evaluateAlerts(ctx)
	if err != nil {
		slog.Error("alert evaluation failed", "error", err)
		return exitFatal
	}

	printJSON(map[string]any{
		"parse":     res,
		"reprocess": retried,
		"detector":  detection,
	})
	if res.Failed > 0 || retried.Failed > 0 {
		return exitPartial
	}
	return exitOK
}

func (a *app) evaluateAlerts(ctx context.Context) (*detector.Summary, error) {
	accounts, err := a.accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	ids := make([]int, len(accounts))
	for i, acc := range accounts {
		ids[i] = acc.ID
	}
	return a.detector.Evaluate(ctx, ids)
}

// retention prunes processed captures and resolved alerts past their
// horizons. Failures are logged, not fatal: stale rows can wait a day.
func (a *app) retention(ctx context.Context) {
	now := time.Now()
	if n, err := a.captures.PruneProcessed(ctx, now.Add(-a.cfg.CaptureRetention)); err != nil {
		slog.Error("prune captures failed", "error", err)
	} else {
		slog.Info("pruned processed captures", "deleted", n)
	}
	if n, err := a.alerts.PruneResolved(ctx, now.Add(-a.cfg.AlertRetention)); err != nil {
		slog.Error("prune alerts failed", "error", err)
	} else {
		slog.Info("pruned resolved alerts", "deleted", n)
	}
}

func (a *app) serve(ctx context.Context) int {
	sched := scheduler.New(a.cfg.RunTimeout, slog.Default())

	tierJob := func(tier collector.Tier) scheduler.Runner {
		return func(ctx context.Context) error {
			sum, err := a.orchestrator.Run(ctx, tier)
			if err != nil {
				return err
			}
			if sum.Partial() {
				slog.Warn("tier completed partially",
					"tier", tier.Name,
					"failed", sum.Failed,
					"deferred", sum.Deferred,
					"missing_credentials", sum.MissingCredentials)
			}
			if tier.Name == collector.TierMaintenance.Name {
				a.retention(ctx)
			}
			return nil
		}
	}
	parseJob := func(ctx context.Context) error {
		if _, err := a.parser.ProcessBatch(ctx, a.cfg.ParseBatchSize); err != nil {
			return err
		}
		if _, err := a.parser.ReprocessFailed(ctx, a.cfg.ParseBatchSize, a.cfg.MaxParseRetry); err != nil {
			return err
		}
		_, err := a.evaluateAlerts(ctx)
		return err
	}

	jobs := []struct {
		name string
		spec string
		run  scheduler.Runner
	}{
		{collector.TierEssentials.Name, a.cfg.CronEssentials, tierJob(collector.TierEssentials)},
		{collector.TierOverview.Name, a.cfg.CronOverview, tierJob(collector.TierOverview)},
		{collector.TierDeepAnalysis.Name, a.cfg.CronDeepAnalysis, tierJob(collector.TierDeepAnalysis)},
		{collector.TierMaintenance.Name, a.cfg.CronMaintenance, tierJob(collector.TierMaintenance)},
		{"parse", a.cfg.CronParse, parseJob},
	}
	for _, j := range jobs {
		if err := sched.Add(j.name, j.spec, j.run); err != nil {
			slog.Error("invalid schedule", "error", err)
			return exitFatal
		}
	}
	sched.Start()

	statusHandler := handler.NewStatusHandler(a.governor, a.captures, a.alerts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recovery)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		statusHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("status server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Let running jobs drain, bounded.
	drained := sched.Stop()
	select {
	case <-drained.Done():
	case <-time.After(30 * time.Second):
		slog.Warn("jobs did not drain in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return exitOK
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
