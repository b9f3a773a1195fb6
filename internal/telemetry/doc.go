// Package telemetry обеспечивает наблюдаемость scheduler'а.
//
// Включает:
//   - logging.go — structured logging через slog (+ ротация файла через lumberjack)
//   - metrics.go — Prometheus метрики проходов и capacity
//   - tracing.go — OpenTelemetry tracing (OTLP/HTTP), W3C trace context
//
// Метрики экспортируются на /metrics endpoint.
package telemetry
