package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/mirrorsync/internal/domain"
)

// MirrorStore — чтение зеркал и force sync (repo.MirrorRepo).
type MirrorStore interface {
	GetMirror(ctx context.Context, repositoryID int64) (*domain.DueMirror, error)
	ForceSync(ctx context.Context, repositoryID int64, now time.Time) (*domain.DueMirror, error)
}

// CapacityReader — состояние слотов (capacity.Tracker).
type CapacityReader interface {
	MaxCapacity() int
	CurrentScheduling(ctx context.Context) (int, error)
}

// PassTrigger запрашивает внеочередной проход (scheduler.Trigger).
type PassTrigger interface {
	Kick()
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	mirrors  MirrorStore
	capacity CapacityReader
	trigger  PassTrigger
	logger   *slog.Logger
	now      func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Mirrors  MirrorStore
	Capacity CapacityReader
	Trigger  PassTrigger
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		mirrors:  cfg.Mirrors,
		capacity: cfg.Capacity,
		trigger:  cfg.Trigger,
		logger:   logger,
		now:      time.Now,
	}
}
