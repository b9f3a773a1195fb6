package capacity

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Ключи в capacity bucket.
const (
	CounterKey   = "mirror_sync.in_flight"
	ResetMarkKey = "mirror_sync.in_flight.reset_at"
)

// Counter — атомарный неотрицательный счётчик (kv.Counter или kv.MemoryCounter).
type Counter interface {
	Value(ctx context.Context) (int64, error)
	Add(ctx context.Context, delta int64) (int64, error)
	Set(ctx context.Context, value int64) error
}

// Marker хранит момент последнего сброса счётчика в unix nanoseconds.
// Counter подходит как Marker.
type Marker interface {
	Value(ctx context.Context) (int64, error)
	Set(ctx context.Context, value int64) error
}

// Config — конфигурация Tracker.
type Config struct {
	Counter     Counter
	MaxCapacity int // максимум одновременных синхронизаций (default: 100)
	Threshold   int // минимум свободных слотов для немедленного перезапуска (default: 1)
	Logger      *slog.Logger

	// ResetMark — общий для экземпляров момент сброса. nil — в памяти процесса.
	ResetMark Marker
}

// Tracker — учёт занятых слотов синхронизации.
type Tracker struct {
	counter     Counter
	resetMark   Marker
	maxCapacity int
	threshold   int
	logger      *slog.Logger
}

// New создаёт Tracker.
func New(cfg Config) *Tracker {
	maxCapacity := cfg.MaxCapacity
	if maxCapacity <= 0 {
		maxCapacity = 100
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	threshold = min(threshold, maxCapacity)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resetMark := cfg.ResetMark
	if resetMark == nil {
		resetMark = &localMark{}
	}

	return &Tracker{
		counter:     cfg.Counter,
		resetMark:   resetMark,
		maxCapacity: maxCapacity,
		threshold:   threshold,
		logger:      logger,
	}
}

// MaxCapacity возвращает общий лимит.
func (t *Tracker) MaxCapacity() int {
	return t.maxCapacity
}

// CurrentScheduling возвращает число занятых слотов.
func (t *Tracker) CurrentScheduling(ctx context.Context) (int, error) {
	v, err := t.counter.Value(ctx)
	if err != nil {
		return 0, fmt.Errorf("read in-flight counter: %w", err)
	}
	return int(v), nil
}

// AvailableCapacity возвращает число свободных слотов (не меньше 0).
func (t *Tracker) AvailableCapacity(ctx context.Context) (int, error) {
	current, err := t.CurrentScheduling(ctx)
	if err != nil {
		return 0, err
	}
	return max(t.maxCapacity-current, 0), nil
}

// TrackScheduling занимает по слоту на каждый ID.
func (t *Tracker) TrackScheduling(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	v, err := t.counter.Add(ctx, int64(len(ids)))
	if err != nil {
		return fmt.Errorf("track %d scheduled mirrors: %w", len(ids), err)
	}
	t.logger.Debug("capacity tracked", "added", len(ids), "in_flight", v)
	return nil
}

// UntrackScheduling освобождает n слотов. Счётчик не уходит ниже нуля.
//
// Вызывается при завершении синхронизации и при откате неудачного dispatch.
func (t *Tracker) UntrackScheduling(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	v, err := t.counter.Add(ctx, -int64(n))
	if err != nil {
		return fmt.Errorf("untrack %d mirrors: %w", n, err)
	}
	t.logger.Debug("capacity released", "released", n, "in_flight", v)
	return nil
}

// UntrackCompleted освобождает слот завершившейся синхронизации.
//
// Синхронизация, завершившаяся до последнего сброса, уже не входит
// в baseline: её событие пропускается, иначе счётчик занизится.
// Нулевой finishedAt слот освобождает.
func (t *Tracker) UntrackCompleted(ctx context.Context, finishedAt time.Time) (bool, error) {
	if !finishedAt.IsZero() {
		resetAt, err := t.resetMark.Value(ctx)
		if err != nil {
			return false, fmt.Errorf("read reset mark: %w", err)
		}
		if resetAt > 0 && finishedAt.UnixNano() < resetAt {
			t.logger.Debug("completion predates counter reset, slot not released",
				"finished_at", finishedAt,
				"reset_at", time.Unix(0, resetAt).UTC(),
			)
			return false, nil
		}
	}
	if err := t.UntrackScheduling(ctx, 1); err != nil {
		return false, err
	}
	return true, nil
}

// ResetScheduling перезаписывает счётчик значением baseline.
//
// baseline — число синхронизаций в scheduled/started после reclaim,
// подсчитанное в момент countedAt. Для пустого хранилища это 0.
func (t *Tracker) ResetScheduling(ctx context.Context, baseline int, countedAt time.Time) error {
	if err := t.resetMark.Set(ctx, countedAt.UnixNano()); err != nil {
		return fmt.Errorf("write reset mark: %w", err)
	}
	if err := t.counter.Set(ctx, int64(max(baseline, 0))); err != nil {
		return fmt.Errorf("reset in-flight counter: %w", err)
	}
	return nil
}

// ShouldRescheduleImmediately сообщает, хватает ли свободных слотов
// для немедленного следующего прохода.
func (t *Tracker) ShouldRescheduleImmediately(ctx context.Context) (bool, error) {
	available, err := t.AvailableCapacity(ctx)
	if err != nil {
		return false, err
	}
	return available >= t.threshold, nil
}

// Validate проверяет лимиты.
func Validate(maxCapacity, threshold int) error {
	if maxCapacity <= 0 {
		return fmt.Errorf("%w: max capacity must be positive, got %d", ErrInvalidConfig, maxCapacity)
	}
	if threshold < 1 || threshold > maxCapacity {
		return fmt.Errorf("%w: threshold must be in [1, %d], got %d", ErrInvalidConfig, maxCapacity, threshold)
	}
	return nil
}

// localMark — Marker в памяти процесса.
type localMark struct {
	v atomic.Int64
}

func (m *localMark) Value(context.Context) (int64, error) {
	return m.v.Load(), nil
}

func (m *localMark) Set(_ context.Context, value int64) error {
	m.v.Store(value)
	return nil
}
