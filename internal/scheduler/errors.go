package scheduler

import "errors"

// Ошибки пакета scheduler.
var (
	// ErrCursorRegressed — хранилище вернуло зеркало не после курсора.
	ErrCursorRegressed = errors.New("due query returned row at or before cursor")

	// ErrInvalidSchedule — некорректное cron-выражение триггера.
	ErrInvalidSchedule = errors.New("invalid trigger schedule")
)
