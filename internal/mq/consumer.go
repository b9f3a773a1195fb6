package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// Handler обрабатывает одно событие. Ошибка возвращает сообщение в очередь.
//
// ctx несёт логгер доставки (telemetry.FromContext) с очередью,
// message_id и типом события.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное событие.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Исход доставки, он же label метрики EventDeliveries.
const (
	settleAck        = "ack"
	settleRequeue    = "requeue"
	settleDeadLetter = "dead_letter"
)

const resubscribeInterval = 5 * time.Second

// Consumer читает события worker'ов из очереди и переживает переподключения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сколько неподтверждённых событий держит consumer (по умолчанию 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Start читает события до отмены ctx. После обрыва соединения ждёт
// переподключения и подписывается заново.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("cannot subscribe, waiting for reconnect", "error", err)
		} else {
			c.logger.Info("consuming sync events", "prefetch", c.prefetch)
			c.drain(ctx, deliveries)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err == nil {
			c.logger.Warn("deliveries closed by broker, waiting for reconnect")
		}

		// Канал мог закрыться без обрыва соединения: тогда сигнала не будет
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		case <-time.After(resubscribeInterval):
		}
	}
}

// subscribe выставляет prefetch и подписывается на очередь управляющим каналом.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.controlChannel()
	if ch == nil {
		return nil, ErrNotConnected
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,                    // queue
		ConnectionName+"."+c.queue, // consumer tag
		false,                      // auto-ack
		false,                      // exclusive
		false,                      // no-local
		false,                      // no-wait
		nil,                        // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки, пока канал открыт и ctx не отменён.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(raw, c.handle(ctx, raw))
		}
	}
}

// handle разбирает и обрабатывает одну доставку и возвращает её исход.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) string {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		// Повтор не поможет, сообщение уходит в DLQ
		c.logger.Error("undecodable event", "error", err, "body", string(raw.Body))
		return settleDeadLetter
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	if raw.Redelivered {
		logger = logger.With("redelivered", true)
	}
	ctx = telemetry.WithLogger(ctx, logger)

	// Продолжаем trace worker'а, опубликовавшего событие
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(raw.Headers))

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		logger.Error("event handling failed, requeueing", "error", err)
		return settleRequeue
	}
	return settleAck
}

func (c *Consumer) settle(raw amqp.Delivery, settlement string) {
	var err error
	switch settlement {
	case settleAck:
		err = raw.Ack(false)
	case settleRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	telemetry.EventDeliveries.WithLabelValues(settlement).Inc()
	if err != nil {
		// Канал закрыт: брокер сам вернёт доставку в очередь
		c.logger.Warn("failed to settle delivery", "settlement", settlement, "error", err)
	}
}

// headerCarrier адаптирует заголовки AMQP к propagation.TextMapCarrier.
type headerCarrier amqp.Table

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (h headerCarrier) Get(key string) string {
	v, _ := h[key].(string)
	return v
}

func (h headerCarrier) Set(key, value string) {
	h[key] = value
}

func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload может быть уже распарсен как map или быть raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
