// Package cli реализует инструмент командной строки планировщика синхронизаций зеркал.
//
// CLI работает через HTTP API и не импортирует внутренние пакеты системы.
//
// # Client
//
// HTTP-клиент для API. Разбирает DataResponse и ErrorResponse:
//
//	client := cli.NewClient("http://localhost:8081")
//	capacity, err := client.GetCapacity()
//
// # Output
//
// Таблицы через text/tabwriter по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	mirrorsync mirror show 42 --json | jq .status
//
// # Commands
//
//   - capacity: состояние слотов
//   - pass trigger: внеочередной проход
//   - mirror: show, force-sync
//
// Фабрики команд принимают clientFn и outputFn, чтобы Client и Output
// создавались после парсинга PersistentFlags.
package cli
