package domain

import (
	"math"
	"time"
)

// DueMirror — кандидат на синхронизацию: репозиторий и его SyncState.
type DueMirror struct {
	Repository Repository `json:"repository"`
	State      SyncState  `json:"state"`
}

// ID возвращает ID репозитория.
func (m *DueMirror) ID() int64 {
	return m.Repository.ID
}

// Eligible проверяет, можно ли ещё отправить зеркало в синхронизацию.
// Флаги репозитория могли измениться после того, как он стал due,
// поэтому проверка выполняется на стороне клиента после выборки.
func (m *DueMirror) Eligible() bool {
	return m.Repository.CanMirror() && !m.State.HardFailed
}

// Cursor возвращает позицию этой записи в порядке (next_execution_at, id).
func (m *DueMirror) Cursor() Cursor {
	var at time.Time
	if m.State.NextExecutionAt != nil {
		at = *m.State.NextExecutionAt
	}
	return Cursor{At: at, ID: m.Repository.ID}
}

// Cursor — позиция keyset-пагинации по (next_execution_at, id).
//
// Живёт только в пределах одного прохода и отбрасывается в конце.
type Cursor struct {
	At time.Time `json:"at"`
	ID int64     `json:"id"`
}

// StartCursor возвращает курсор, исключающий всё с next_execution_at <= floor.
func StartCursor(floor time.Time) Cursor {
	return Cursor{At: floor, ID: math.MaxInt64}
}

// Less возвращает true, если c строго раньше other.
func (c Cursor) Less(other Cursor) bool {
	if c.At.Equal(other.At) {
		return c.ID < other.ID
	}
	return c.At.Before(other.At)
}
