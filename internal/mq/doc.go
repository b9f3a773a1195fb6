// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect с backoff, повторное объявление топологии)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — транзакционная публикация sync jobs
//   - inspector.go  — число незабранных sync jobs (сигнал pickup)
//   - consumer.go   — потребление событий worker'ов, ack/requeue/DLQ
//
// Типы сообщений:
//   - mirror.sync.requested — sync job для worker'а
//   - mirror.sync.started   — worker взял job
//   - mirror.sync.finished  — синхронизация завершена
//   - mirror.sync.failed    — синхронизация упала
//
// Exchanges:
//   - mirrorsync.syncs  — sync jobs
//   - mirrorsync.events — события worker'ов
//   - mirrorsync.dlq    — dead letter queue
package mq
