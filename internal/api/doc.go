// Package api содержит admin HTTP API scheduler'а.
//
// Структура:
//   - handler.go          — Handler с DI (хранилище зеркал, capacity, trigger, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects
//   - capacity_handler.go — /capacity, /passes
//   - mirror_handler.go   — /mirrors/{id}, /mirrors/{id}/force-sync
package api
