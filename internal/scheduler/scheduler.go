// Package scheduler triggers periodic dataset refreshes.
//
// A single cron entry starts a full pipeline run on the configured
// schedule. Runs triggered by hand through the API always win: when a
// run is already active the scheduled slot is skipped, never queued.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"covidcli/internal/config"
	"covidcli/internal/infrastructure"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// PipelineStarter is the slice of the operation service the scheduler
// needs.
type PipelineStarter interface {
	Start(ctx context.Context, opts services.RunOptions) (*domain.OperationSummary, error)
	ActiveRunID() string
}

// Scheduler runs the pipeline on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner PipelineStarter
	logger *slog.Logger
	spec   string
}

// New builds a scheduler from configuration. The cron spec is validated
// here so a bad spec fails at startup rather than at the first slot.
func New(cfg config.SchedulerConfig, runner PipelineStarter, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger.With(slog.String("component", "scheduler")),
		spec:   cfg.CronSpec,
	}

	if _, err := s.cron.AddFunc(cfg.CronSpec, s.refresh); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins firing scheduled refreshes.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("cron_spec", s.spec))
}

// Stop stops the cron loop and waits for an in-flight trigger callback.
// The pipeline run itself keeps going; it runs on its own context.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.logger.Info("scheduler stopped")
}

// refresh is the cron entry body.
func (s *Scheduler) refresh() {
	if id := s.runner.ActiveRunID(); id != "" {
		s.logger.Info("skipping scheduled refresh, run already active",
			slog.String("active_run_id", id))
		return
	}

	ctx := infrastructure.ContextWithTraceID(context.Background())
	summary, err := s.runner.Start(ctx, services.RunOptions{
		Trigger:     "scheduled",
		ForceFetch:  true,
		Description: "scheduled dataset refresh",
	})
	if err != nil {
		s.logger.Error("scheduled refresh failed to start", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("scheduled refresh started", slog.String("operation_id", summary.ID))
}
