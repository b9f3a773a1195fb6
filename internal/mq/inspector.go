package mq

import (
	"context"
	"fmt"
)

// Inspector читает состояние очередей.
type Inspector struct {
	conn  *Connection
	queue Queue
}

// NewInspector создаёт Inspector для очереди sync jobs.
func NewInspector(conn *Connection) *Inspector {
	return &Inspector{conn: conn, queue: QueueMirrorSync}
}

// Pending возвращает число сообщений, ещё не забранных worker'ами.
//
// Пассивное объявление при ошибке закрывает канал, поэтому
// каждый вызов работает на своём канале.
func (i *Inspector) Pending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ch, err := i.conn.OpenChannel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(
		string(i.queue), // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return 0, fmt.Errorf("inspect queue %s: %w", i.queue, err)
	}
	return q.Messages, nil
}
