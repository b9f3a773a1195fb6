package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/mirrorsync/internal/mq"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// Releaser освобождает слоты capacity (capacity.Tracker).
type Releaser interface {
	UntrackCompleted(ctx context.Context, finishedAt time.Time) (bool, error)
}

// Listener обрабатывает события worker'ов о ходе синхронизаций.
//
// Завершение синхронизации (finished или failed) освобождает один слот.
// started только фиксируется: слот занят с момента dispatch.
type Listener struct {
	releaser Releaser
	logger   *slog.Logger
}

// NewListener создаёт Listener.
func NewListener(releaser Releaser, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{releaser: releaser, logger: logger}
}

// Handle — mq.Handler для очереди mirrors.events.
//
// Ошибка возвращает сообщение в очередь. Неизвестные типы подтверждаются
// и пропускаются, чтобы не зациклить их в очереди.
func (l *Listener) Handle(ctx context.Context, d *mq.Delivery) error {
	msg := &d.Message
	logger := telemetry.FromContext(ctx, l.logger)
	telemetry.SyncEvents.WithLabelValues(string(msg.Type)).Inc()

	switch msg.Type {
	case mq.MessageTypeSyncStarted, mq.MessageTypeSyncFinished, mq.MessageTypeSyncFailed:
	default:
		logger.Warn("unknown sync event, skipping", "type", msg.Type, "message_id", msg.ID)
		return nil
	}

	payload, err := mq.ParsePayload[mq.SyncEventPayload](msg)
	if err != nil {
		// Повтор не поможет
		logger.Error("malformed sync event, skipping", "message_id", msg.ID, "error", err)
		return nil
	}
	logger = telemetry.WithRepositoryID(logger, payload.RepositoryID)

	if msg.Type == mq.MessageTypeSyncStarted {
		logger.Debug("mirror sync started")
		return nil
	}

	finishedAt := msg.Timestamp
	if payload.FinishedAt != nil {
		finishedAt = *payload.FinishedAt
	}
	released, err := l.releaser.UntrackCompleted(ctx, finishedAt)
	if err != nil {
		return fmt.Errorf("release capacity for repository %d: %w", payload.RepositoryID, err)
	}
	if !released {
		logger.Debug("sync completed before last counter reset, slot already recounted", "finished_at", finishedAt)
	}

	if msg.Type == mq.MessageTypeSyncFailed {
		logger.Info("mirror sync failed", "error", payload.Error)
	} else {
		logger.Debug("mirror sync finished")
	}
	return nil
}
