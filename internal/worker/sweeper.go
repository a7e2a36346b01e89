// internal/worker/sweeper.go
package worker

import (
	"context"
	"fmt"
	"time"

	scheduleService "jikoni-service/internal/service/schedule"

	"go.uber.org/zap"
)

// Sweeper periodically reconciles scheduled orders: active orders past their
// end date are expired, and due orders with reminders enabled are announced
// over the event hub. Execution itself stays with the delivery executor.
type Sweeper struct {
	scheduleSvc *scheduleService.ScheduleService
	logger      *zap.Logger
}

func NewSweeper(scheduleSvc *scheduleService.ScheduleService, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		scheduleSvc: scheduleSvc,
		logger:      logger,
	}
}

// Register schedules the sweep on the runner at the given interval.
func (s *Sweeper) Register(runner *Runner, interval time.Duration) error {
	if interval < time.Minute {
		interval = time.Minute
	}

	_, err := runner.Add(fmt.Sprintf("@every %s", interval), s.Sweep)
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	return nil
}

// Sweep runs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.scheduleSvc.ExpireOverdueOrders(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}

	notified, err := s.scheduleSvc.NotifyDueOrders(ctx)
	if err != nil {
		s.logger.Error("due-order sweep failed", zap.Error(err))
	}

	s.logger.Debug("sweep completed",
		zap.Int("expired", expired),
		zap.Int("notified", notified),
	)
}
