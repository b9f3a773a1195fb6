package domain

// SyncStatus — статус синхронизации зеркала.
//
// Жизненный цикл:
//
//	IDLE → SCHEDULED → STARTED → FINISHED
//	           │                ↘ FAILED
//	           └→ FAILED (stuck reclaim)
//
// Переходы IDLE/FINISHED/FAILED → SCHEDULED и SCHEDULED → FAILED (reclaim)
// выполняет scheduler. Остальные переходы — внешний sync job.
type SyncStatus string

const (
	// SyncStatusIdle — синхронизация ни разу не планировалась.
	SyncStatusIdle SyncStatus = "idle"

	// SyncStatusScheduled — sync job поставлен в очередь, но ещё не стартовал.
	SyncStatusScheduled SyncStatus = "scheduled"

	// SyncStatusStarted — sync job взят воркером и выполняется.
	SyncStatusStarted SyncStatus = "started"

	// SyncStatusFinished — последняя синхронизация завершилась успешно.
	SyncStatusFinished SyncStatus = "finished"

	// SyncStatusFailed — последняя синхронизация завершилась ошибкой.
	SyncStatusFailed SyncStatus = "failed"
)

// IsInFlight возвращает true, если синхронизация занимает слот capacity.
func (s SyncStatus) IsInFlight() bool {
	switch s {
	case SyncStatusScheduled, SyncStatusStarted:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusIdle, SyncStatusScheduled, SyncStatusStarted, SyncStatusFinished, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление SyncStatus.
func (s SyncStatus) String() string {
	return string(s)
}
