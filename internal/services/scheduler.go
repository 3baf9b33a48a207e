package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic maintenance jobs: currently the overdue sweep
// that flips pending assignees of past-due requests.
type Scheduler struct {
	cron     *cron.Cron
	requests RequestService
	logger   *slog.Logger
	schedule string
}

func NewScheduler(requests RequestService, logger *slog.Logger, schedule string) *Scheduler {
	if schedule == "" {
		schedule = "*/10 * * * *"
	}
	return &Scheduler{
		cron:     cron.New(),
		requests: requests,
		logger:   logger,
		schedule: schedule,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepOverdue)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "overdue_sweep", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) sweepOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := s.requests.MarkOverdueRequests(ctx); err != nil {
		s.logger.Error("Overdue sweep failed", "error", err)
	}
}
