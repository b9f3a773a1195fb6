package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownStatus — в БД статус синхронизации, который scheduler не знает.
	ErrUnknownStatus = errors.New("unknown sync status")
)
