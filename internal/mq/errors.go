package mq

import "errors"

// ErrNotConnected — соединение с RabbitMQ не установлено.
var ErrNotConnected = errors.New("rabbitmq not connected")
