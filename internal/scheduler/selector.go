package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/mirrorsync/internal/domain"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// scheduleDue выбирает due зеркала пачками по курсору (nextExecutionAt, id)
// и отдаёт их dispatch, пока не исчерпан budget.
//
// asOf фиксируется один раз: зеркала, ставшие due во время прохода,
// ждут следующего прохода. Курсор сдвигается на каждое просмотренное
// зеркало, поэтому одно зеркало не попадает в проход дважды.
func (s *Scheduler) scheduleDue(ctx context.Context, logger *slog.Logger, budget int, result *PassResult) error {
	asOf := s.now()
	cursor := domain.StartCursor(s.floorCutoff)
	dispatched := make(map[int64]struct{})

	for budget > 0 {
		batchSize := min(budget*s.overfetchFactor, s.maxBatchSize)

		mirrors, err := s.store.ListDue(ctx, cursor, asOf, batchSize)
		if err != nil {
			return fmt.Errorf("list due mirrors: %w", err)
		}
		if len(mirrors) == 0 {
			break
		}
		result.Batches++

		ids := make([]int64, 0, min(budget, len(mirrors)))
		examined := 0
		for i := range mirrors {
			if len(ids) == budget {
				break
			}
			m := &mirrors[i]
			examined++

			next := m.Cursor()
			if !cursor.Less(next) {
				return fmt.Errorf("%w: %v after %v", ErrCursorRegressed, next, cursor)
			}
			cursor = next

			if !m.Eligible() || !m.State.IsDue(asOf) {
				result.Filtered++
				telemetry.MirrorsFiltered.Inc()
				continue
			}
			if _, dup := dispatched[m.ID()]; dup {
				continue
			}
			dispatched[m.ID()] = struct{}{}
			ids = append(ids, m.ID())
		}
		result.Cursor = &cursor

		n, err := s.dispatch(ctx, logger, ids)
		result.Scheduled += n
		budget -= n
		if err != nil {
			return err
		}

		logger.Debug("batch dispatched",
			"batch", result.Batches,
			"fetched", len(mirrors),
			"dispatched", n,
			"budget_left", budget,
		)

		// Источник исчерпан, только если просмотрена вся неполная пачка
		if examined == len(mirrors) && len(mirrors) < batchSize {
			break
		}
	}
	return nil
}
