// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/IlyasAtabaev731/lsc-coin/internal/metrics"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

// Exporter yields the current users blob.
type Exporter interface {
	Export(ctx context.Context) (string, error)
}

// Sweeper drops expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

type Scheduler struct {
	cron     *cron.Cron
	schedule string
	exporter Exporter
	sweeper  Sweeper
	store    storage.Store
	logger   *slog.Logger
}

func NewScheduler(schedule string, exporter Exporter, store storage.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		exporter: exporter,
		store:    store,
		logger:   logger,
	}
}

// SweepSessions makes the scheduler drop expired sessions on the backup
// schedule. Call it before Start.
func (s *Scheduler) SweepSessions(sweeper Sweeper) {
	s.sweeper = sweeper
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("jobs.Start: invalid schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", slog.String("backup_schedule", s.schedule))
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.Backup(ctx); err != nil {
		s.logger.Error("Backup failed", "error", err)
	}
	if s.sweeper == nil {
		return
	}
	if err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.Error("Session sweep failed", "error", err)
	}
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// Backup copies the users blob to the backup key.
func (s *Scheduler) Backup(ctx context.Context) error {
	const op = "jobs.Backup"

	blob, err := s.exporter.Export(ctx)
	if err != nil {
		metrics.BackupsTaken.WithLabelValues("failed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.SetItem(ctx, storage.UsersBackupKey, blob); err != nil {
		metrics.BackupsTaken.WithLabelValues("failed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.BackupsTaken.WithLabelValues("ok").Inc()
	s.logger.Debug("Users backed up", slog.Int("bytes", len(blob)))
	return nil
}
