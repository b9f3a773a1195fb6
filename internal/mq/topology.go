package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeSyncs  Exchange = "mirrorsync.syncs"
	ExchangeEvents Exchange = "mirrorsync.events"
	ExchangeDLQ    Exchange = "mirrorsync.dlq"
)

// Queues — имена очередей.
const (
	QueueMirrorSync   Queue = "mirrors.sync"
	QueueMirrorEvents Queue = "mirrors.events"
	QueueDLQMirrors   Queue = "dlq.mirrors"
)

// Routing keys.
const (
	RoutingKeySync       RoutingKey = "sync"
	RoutingKeyEvent      RoutingKey = "event"
	RoutingKeyDLQMirrors RoutingKey = "mirrors"
)

// declareTopology объявляет exchanges, queues и bindings. Операция идемпотентна.
func declareTopology(ch *amqp.Channel) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	return bindQueues(ch)
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeSyncs, ExchangeEvents, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// mirrors.sync — sync jobs; отклонённые worker'ом уходят в DLQ
		{QueueMirrorSync, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQMirrors),
		}},
		// mirrors.events — started/finished/failed от worker'ов
		{QueueMirrorEvents, nil},
		{QueueDLQMirrors, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueMirrorSync, RoutingKeySync, ExchangeSyncs},
		{QueueMirrorEvents, RoutingKeyEvent, ExchangeEvents},
		{QueueDLQMirrors, RoutingKeyDLQMirrors, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Mirrorsync RabbitMQ Topology:

    mirrorsync.syncs (direct)
    └── mirrors.sync [routing: sync]
            Consumer: mirror sync worker (external)
            DLQ: dlq.mirrors

    mirrorsync.events (direct)
    └── mirrors.events [routing: event]
            Consumer: scheduler (completion listener)

    mirrorsync.dlq (direct)
    └── dlq.mirrors [routing: mirrors]
            Manual processing
  `
}
