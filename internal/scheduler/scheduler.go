package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is one scheduled unit of work.
type Runner func(ctx context.Context) error

// Scheduler drives the tiers and the parser on cron cadences in daemon
// mode. Each job gets a fresh context bounded by the run timeout;
// overlapping fires of the same job are the governor's problem, not
// the scheduler's.
type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	runTimeout time.Duration
}

func New(runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// Add registers a job on a standard 5-field cron spec.
func (s *Scheduler) Add(name, spec string, run Runner) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		start := time.Now()
		s.logger.Info("job starting", "job", name)
		if err := run(ctx); err != nil {
			s.logger.Error("job failed", "job", name, "error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return
		}
		s.logger.Info("job finished", "job", name,
			"duration_ms", time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that closes when running
// jobs have drained.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
