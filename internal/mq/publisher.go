package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	// MessageTypeSyncRequested — sync job для worker'а. Публикует scheduler.
	MessageTypeSyncRequested MessageType = "mirror.sync.requested"

	// События worker'а о ходе синхронизации.
	MessageTypeSyncStarted  MessageType = "mirror.sync.started"
	MessageTypeSyncFinished MessageType = "mirror.sync.finished"
	MessageTypeSyncFailed   MessageType = "mirror.sync.failed"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// SyncJobPayload — payload sync job.
type SyncJobPayload struct {
	RepositoryID int64 `json:"repository_id"`

	// TraceContext — W3C trace context прохода, который поставил job.
	TraceContext map[string]string `json:"trace_context,omitempty"`
}

// SyncEventPayload — payload события worker'а.
type SyncEventPayload struct {
	RepositoryID int64  `json:"repository_id"`
	Error        string `json:"error,omitempty"`

	// FinishedAt — когда worker записал finished/failed в sync state.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Publisher публикует sync jobs в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// PublishMirrorSyncs публикует по одному sync job на каждый ID
// одной AMQP транзакцией: либо брокер принял все сообщения, либо ни одного.
func (p *Publisher) PublishMirrorSyncs(ctx context.Context, repositoryIDs []int64) error {
	if len(repositoryIDs) == 0 {
		return nil
	}

	publishings, err := buildSyncPublishings(ctx, repositoryIDs, p.now())
	if err != nil {
		return err
	}

	ch, err := p.conn.OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Tx(); err != nil {
		return fmt.Errorf("start publish transaction: %w", err)
	}

	for i, pub := range publishings {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeSyncs),
			string(RoutingKeySync),
			false, // mandatory
			false, // immediate
			pub,
		)
		if err != nil {
			if rbErr := ch.TxRollback(); rbErr != nil {
				p.logger.Warn("publish transaction rollback failed", "error", rbErr)
			}
			return fmt.Errorf("publish sync job %d/%d: %w", i+1, len(publishings), err)
		}
	}

	if err := ch.TxCommit(); err != nil {
		return fmt.Errorf("commit publish transaction: %w", err)
	}

	p.logger.Debug("published sync jobs",
		"exchange", ExchangeSyncs,
		"count", len(publishings),
	)
	return nil
}

// buildSyncPublishings формирует AMQP сообщения для sync jobs.
//
// Trace context прохода кладётся и в payload, и в заголовки сообщения.
func buildSyncPublishings(ctx context.Context, repositoryIDs []int64, now time.Time) ([]amqp.Publishing, error) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	publishings := make([]amqp.Publishing, 0, len(repositoryIDs))
	for _, id := range repositoryIDs {
		msg := &Message{
			ID:   uuid.New().String(),
			Type: MessageTypeSyncRequested,
			Payload: SyncJobPayload{
				RepositoryID: id,
				TraceContext: carrier,
			},
			Timestamp: now,
		}

		body, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal sync job %d: %w", id, err)
		}

		publishings = append(publishings, amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    now,
			Body:         body,
		})
	}
	return publishings, nil
}
