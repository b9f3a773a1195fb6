package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// awaitPickup опрашивает очередь, пока worker'ы не заберут поставленные jobs
// или не истечёт pickupWaitDeadline. Ожидание best-effort: ошибки опроса
// только логируются.
func (s *Scheduler) awaitPickup(ctx context.Context, logger *slog.Logger) bool {
	if s.pickup == nil {
		return false
	}

	deadline := time.NewTimer(s.pickupWaitDeadline)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pickupPollInterval)
	defer ticker.Stop()

	for {
		pending, err := s.pickup.Pending(ctx)
		switch {
		case err != nil:
			logger.Debug("pickup probe failed", "error", err)
		case pending == 0:
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			logger.Warn("sync jobs not picked up before deadline",
				"deadline", s.pickupWaitDeadline,
				"pending", pending,
			)
			return false
		case <-ticker.C:
		}
	}
}
