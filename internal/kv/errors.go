package kv

import (
	"errors"

	"github.com/nats-io/nats.go/jetstream"
)

// Ошибки пакета kv.
var (
	// ErrLeaseLost — lease истёк или перехвачен другим держателем до Release.
	ErrLeaseLost = errors.New("lease lost")

	// ErrCASConflict — не удалось обновить значение за отведённое число попыток.
	ErrCASConflict = errors.New("compare-and-swap conflict")
)

// isWrongRevision проверяет, что Update отклонён из-за несовпадения revision.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
