package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/mirrorsync/internal/domain"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// reclaimStuck переводит в failed синхронизации, которые дольше
// stuckThreshold висят в scheduled (worker так и не взял job).
//
// Ошибка на отдельной записи не прерывает обход: запись логируется
// и будет подобрана следующим проходом.
func (s *Scheduler) reclaimStuck(ctx context.Context, logger *slog.Logger) (int, error) {
	now := s.now()

	stuck, err := s.store.ListStuck(ctx, now.Add(-s.stuckThreshold), s.stuckLimit)
	if err != nil {
		return 0, fmt.Errorf("list stuck syncs: %w", err)
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	var reclaimed int
	for i := range stuck {
		state := &stuck[i]
		// Выборка могла вернуть запись, уже сменившую статус
		if !state.IsStuck(now, s.stuckThreshold) {
			continue
		}

		ok, err := s.store.MarkStuckFailed(ctx, state.RepositoryID, *state.ScheduledAt, domain.StuckReason)
		if err != nil {
			if isCanceled(err) {
				return reclaimed, err
			}
			telemetry.WithRepositoryID(logger, state.RepositoryID).Warn("failed to reclaim stuck sync",
				"scheduled_at", state.ScheduledAt,
				"error", err,
			)
			continue
		}
		if !ok {
			// Job успел стартовать или запись перепланирована
			continue
		}

		reclaimed++
		telemetry.WithRepositoryID(logger, state.RepositoryID).Info("reclaimed stuck sync",
			"scheduled_at", state.ScheduledAt,
			"stuck_for", now.Sub(*state.ScheduledAt).Round(time.Second),
		)
	}

	telemetry.StuckReclaimed.Add(float64(reclaimed))
	return reclaimed, nil
}
