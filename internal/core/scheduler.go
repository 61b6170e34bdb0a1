package core

// scheduler.go runs sync cycles on a fixed interval.
//
// The scheduler runs a cycle immediately on start, then on every tick. A tick
// that arrives while a cycle is still running is dropped by the ticker, and a
// manual trigger that overlaps is refused by the cycle guard, so cycles never
// overlap. A panic inside a cycle is logged and the scheduler keeps going.

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// DefaultSyncInterval is the time between scheduled cycles.
const DefaultSyncInterval = 15 * time.Minute

// StartScheduler blocks running cycles every interval until ctx is cancelled.
// Cancelling ctx stops scheduling; a cycle already running is left to finish
// and is bounded by Shutdown instead.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s.logger.Info("sync scheduler started",
		"interval", interval.String(),
		"tables", len(s.tables),
	)

	s.runScheduledCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduledCycle(ctx)
		}
	}
}

// runScheduledCycle performs one cycle, isolating the scheduler from panics.
func (s *Service) runScheduledCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in sync cycle",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	report, err := s.RunCycle(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Warn("scheduled sync cycle skipped: previous cycle still running")
	case err != nil:
		s.logger.Warn("scheduled sync cycle did not run", "error", err, "code", ErrorCode(err))
	default:
		s.logger.Debug("scheduled sync cycle finished",
			"cycle_id", report.ID,
			"failed", report.Failed(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
