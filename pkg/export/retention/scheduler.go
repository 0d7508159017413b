package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the reaper on a cron schedule.
type Scheduler struct {
	reaper  *Reaper
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for the reaper.
func NewScheduler(reaper *Reaper) *Scheduler {
	return &Scheduler{
		reaper: reaper,
		cron:   cron.New(),
		logger: slog.Default().With("component", "export.retention.scheduler"),
	}
}

// Start begins scheduled sweeping. If no schedule is configured the
// scheduler does nothing. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.reaper.config.SweepSchedule
	if schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("export retention scheduler started",
		"schedule", schedule,
		"retention_days", s.reaper.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	removed, err := s.reaper.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled export sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("scheduled export sweep completed", "removed_count", removed)
	} else {
		s.logger.Debug("scheduled export sweep completed, no files removed")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("export retention scheduler stopped")
	}
}
