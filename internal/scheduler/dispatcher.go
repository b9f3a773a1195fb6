package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// dispatch занимает слоты, переводит зеркала в scheduled и ставит sync jobs.
//
// Перевод в scheduled и публикация идут одной транзакцией БД: если очередь
// не приняла пачку, статусы откатываются, а занятые слоты освобождаются.
// Если не удалось освободить слоты, счётчик поправит сброс в начале
// следующего прохода.
//
// Возвращает число реально поставленных зеркал.
func (s *Scheduler) dispatch(ctx context.Context, logger *slog.Logger, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.tracker.TrackScheduling(ctx, ids); err != nil {
		return 0, err
	}

	scheduled, err := s.store.MarkScheduled(ctx, ids, s.now(), s.enqueuer.PublishMirrorSyncs)
	if err != nil {
		telemetry.DispatchFailures.Inc()
		if uerr := s.tracker.UntrackScheduling(context.WithoutCancel(ctx), len(ids)); uerr != nil {
			logger.Error("failed to release capacity after dispatch failure",
				"count", len(ids),
				"error", uerr,
			)
		}
		return 0, fmt.Errorf("dispatch %d mirrors: %w", len(ids), err)
	}

	// Часть зеркал могла уйти в scheduled мимо этого прохода (force sync, гонка)
	if skipped := len(ids) - len(scheduled); skipped > 0 {
		if err := s.tracker.UntrackScheduling(ctx, skipped); err != nil {
			logger.Warn("failed to release capacity of skipped mirrors", "count", skipped, "error", err)
		}
	}

	telemetry.MirrorsScheduled.Add(float64(len(scheduled)))
	return len(scheduled), nil
}
