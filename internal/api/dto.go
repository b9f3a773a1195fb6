package api

import (
	"time"

	"github.com/shaiso/mirrorsync/internal/domain"
)

// CapacityResponse — состояние слотов синхронизации.
type CapacityResponse struct {
	MaxCapacity int `json:"max_capacity"`
	InFlight    int `json:"in_flight"`
	Available   int `json:"available"`
}

// PassResponse — ответ на запрос внеочередного прохода.
type PassResponse struct {
	Status string `json:"status"`
}

// MirrorResponse — ответ с зеркалом и его SyncState.
type MirrorResponse struct {
	RepositoryID    int64             `json:"repository_id"`
	FullPath        string            `json:"full_path"`
	MirrorEnabled   bool              `json:"mirror_enabled"`
	Archived        bool              `json:"archived"`
	PendingDelete   bool              `json:"pending_delete"`
	Status          domain.SyncStatus `json:"status"`
	NextExecutionAt *time.Time        `json:"next_execution_at,omitempty"`
	ScheduledAt     *time.Time        `json:"scheduled_at,omitempty"`
	RetryCount      int               `json:"retry_count"`
	HardFailed      bool              `json:"hard_failed"`
	LastError       string            `json:"last_error,omitempty"`
	Eligible        bool              `json:"eligible"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MirrorFromDomain конвертирует domain.DueMirror в MirrorResponse.
func MirrorFromDomain(m *domain.DueMirror) MirrorResponse {
	return MirrorResponse{
		RepositoryID:    m.Repository.ID,
		FullPath:        m.Repository.FullPath,
		MirrorEnabled:   m.Repository.MirrorEnabled,
		Archived:        m.Repository.Archived,
		PendingDelete:   m.Repository.PendingDelete,
		Status:          m.State.Status,
		NextExecutionAt: m.State.NextExecutionAt,
		ScheduledAt:     m.State.ScheduledAt,
		RetryCount:      m.State.RetryCount,
		HardFailed:      m.State.HardFailed,
		LastError:       m.State.LastError,
		Eligible:        m.Eligible(),
		UpdatedAt:       m.State.UpdatedAt,
	}
}
