package domain

import (
	"time"
)

// ForceSyncLookback — насколько в прошлое сдвигается next_execution_at
// при принудительной синхронизации. Зеркало сразу становится due.
const ForceSyncLookback = 5 * time.Minute

// StuckReason — причина, записываемая при reclaim зависшей синхронизации.
const StuckReason = "stuck in scheduled too long"

// SyncState — запись планирования синхронизации для одного репозитория.
//
// Создаётся, когда у репозитория включается зеркалирование.
// Scheduler никогда не удаляет SyncState.
type SyncState struct {
	// RepositoryID — ссылка на Repository.
	RepositoryID int64 `json:"repository_id"`

	// Status — текущий статус синхронизации.
	Status SyncStatus `json:"status"`

	// NextExecutionAt — когда зеркало снова станет due.
	// nil — зеркало не планируется.
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`

	// ScheduledAt — когда sync job был поставлен в очередь.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// RetryCount — число подряд неудачных синхронизаций.
	RetryCount int `json:"retry_count"`

	// HardFailed — зеркало исчерпало retry и не планируется до ручного force sync.
	HardFailed bool `json:"hard_failed"`

	// LastError — текст последней ошибки.
	LastError string `json:"last_error,omitempty"`

	// UpdatedAt — время последнего изменения записи.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue проверяет, наступило ли время синхронизации относительно asOf.
func (s *SyncState) IsDue(asOf time.Time) bool {
	if s.NextExecutionAt == nil || s.Status.IsInFlight() || s.HardFailed {
		return false
	}
	return !s.NextExecutionAt.After(asOf)
}

// IsStuck проверяет, висит ли синхронизация в SCHEDULED дольше threshold.
func (s *SyncState) IsStuck(now time.Time, threshold time.Duration) bool {
	if s.Status != SyncStatusScheduled || s.ScheduledAt == nil {
		return false
	}
	return s.ScheduledAt.Before(now.Add(-threshold))
}

// ForceSync делает зеркало due немедленно и сбрасывает счётчик ошибок.
func (s *SyncState) ForceSync(now time.Time) {
	next := now.Add(-ForceSyncLookback)
	s.NextExecutionAt = &next
	s.RetryCount = 0
	s.HardFailed = false
	s.UpdatedAt = now
}
