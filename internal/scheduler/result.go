package scheduler

import "github.com/shaiso/mirrorsync/internal/domain"

// PassOutcome — чем закончился проход.
type PassOutcome string

const (
	// OutcomeCompleted — проход выполнил выборку (возможно, ничего не поставив).
	OutcomeCompleted PassOutcome = "completed"

	// OutcomeNoCapacity — свободных слотов нет, выборка не запускалась.
	OutcomeNoCapacity PassOutcome = "no_capacity"

	// OutcomeLeaseUnavailable — проход держит другой экземпляр.
	OutcomeLeaseUnavailable PassOutcome = "lease_unavailable"

	// OutcomeReadOnly — система в read-only или maintenance режиме.
	OutcomeReadOnly PassOutcome = "read_only"

	// OutcomeFailed — проход прерван ошибкой хранилища или очереди.
	OutcomeFailed PassOutcome = "failed"
)

// PassResult — итог одного прохода.
type PassResult struct {
	PassID  string      `json:"pass_id"`
	Outcome PassOutcome `json:"outcome"`

	// Reclaimed — сколько зависших синхронизаций переведено в failed.
	Reclaimed int `json:"reclaimed"`

	// CapacityAtStart — свободные слоты после сброса счётчика.
	CapacityAtStart int `json:"capacity_at_start"`

	Scheduled int `json:"scheduled"`
	Filtered  int `json:"filtered"`
	Batches   int `json:"batches"`

	// Cursor — позиция последнего просмотренного зеркала.
	Cursor *domain.Cursor `json:"cursor,omitempty"`

	PickedUp    bool `json:"picked_up"`
	Rescheduled bool `json:"rescheduled"`
}
