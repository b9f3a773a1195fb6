// Package kv хранит разделяемое между процессами состояние scheduler'а в NATS JetStream KV.
//
// Структура:
//   - store.go   — типизированная обёртка над KV bucket (Get/Put/Create/Update/Delete)
//   - setup.go   — подключение к NATS и создание buckets с TTL
//   - lease.go   — распределённый lease (один активный проход на весь флот)
//   - counter.go — атомарный счётчик через compare-and-swap по revision
//   - memory.go  — локальные замены для режима без NATS
//
// TTL bucket'ов ограничивает последствия падения процесса: lease упавшего
// держателя и «дрейфующий» счётчик исчезают сами.
package kv
