package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"kotizy/internal/ledger"
	"kotizy/internal/worker"
)

// Manager owns the background jobs of the service: the nightly overdue
// sweep and the periodic export drain. Jobs run in singleton mode so a
// slow run is never overlapped by the next tick.
type Manager struct {
	scheduler gocron.Scheduler
}

func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: s}, nil
}

// RegisterOverdueSweep schedules the ledger overdue sweep on the given
// 5-field cron expression.
func (m *Manager) RegisterOverdueSweep(svc *ledger.Service, cronExpr string) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			changed, err := svc.SweepOverdue(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Overdue sweep failed", "error", err)
				return
			}
			slog.InfoContext(ctx, "Overdue sweep job finished", "changed", changed)
		}),
		gocron.WithName("overdue_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register overdue sweep job: %w", err)
	}
	return nil
}

// RegisterExportDrain schedules the pending-export scan of the worker at
// the given interval.
func (m *Manager) RegisterExportDrain(w *worker.ExportWorker, interval time.Duration) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Export drain failed", "error", err)
			}
		}),
		gocron.WithName("export_drain"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register export drain job: %w", err)
	}
	return nil
}

// Start launches the registered jobs.
func (m *Manager) Start() {
	m.scheduler.Start()
	slog.Info("Scheduler started", "jobs", len(m.scheduler.Jobs()))
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (m *Manager) Stop() error {
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
