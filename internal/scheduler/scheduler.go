package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shaiso/mirrorsync/internal/capacity"
	"github.com/shaiso/mirrorsync/internal/domain"
	"github.com/shaiso/mirrorsync/internal/repo"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// LeaseKey — ключ lease прохода планирования.
const LeaseKey = "mirror_sync.scheduling_pass"

// Store — хранилище SyncState (repo.MirrorRepo).
type Store interface {
	ListStuck(ctx context.Context, before time.Time, limit int) ([]domain.SyncState, error)
	MarkStuckFailed(ctx context.Context, repositoryID int64, scheduledAt time.Time, reason string) (bool, error)
	CountInFlight(ctx context.Context) (int, error)
	ListDue(ctx context.Context, cursor domain.Cursor, asOf time.Time, limit int) ([]domain.DueMirror, error)
	MarkScheduled(ctx context.Context, ids []int64, at time.Time, enqueue repo.EnqueueFunc) ([]int64, error)
}

// Leaser — распределённая блокировка прохода (kv.Lease, kv.MemoryLease, repo.AdvisoryLease).
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Enqueuer ставит sync jobs в очередь одной пачкой (mq.Publisher).
type Enqueuer interface {
	PublishMirrorSyncs(ctx context.Context, repositoryIDs []int64) error
}

// PickupProbe сообщает, сколько поставленных jobs ещё не забрали worker'ы (mq.Inspector).
type PickupProbe interface {
	Pending(ctx context.Context) (int, error)
}

// Config — конфигурация Scheduler.
type Config struct {
	Store    Store
	Lease    Leaser
	Tracker  *capacity.Tracker
	Enqueuer Enqueuer
	Pickup   PickupProbe // опционально: без него ожидание pickup пропускается
	Logger   *slog.Logger

	StuckThreshold     time.Duration // default: 30m
	StuckLimit         int           // default: 1000
	LeaseTTL           time.Duration // default: 5m
	PickupWaitDeadline time.Duration // default: 4m
	PickupPollInterval time.Duration // default: 1s
	RescheduleCooldown time.Duration // default: 1s
	FloorCutoff        time.Time     // default: 2020-01-01 UTC
	MaxBatchSize       int           // default: 500
	OverfetchFactor    int           // default: 2

	// ReadOnly и Maintenance превращают проход в no-op.
	ReadOnly    bool
	Maintenance bool

	Now func() time.Time // для тестов
}

// Значения по умолчанию.
const (
	DefaultStuckThreshold     = 30 * time.Minute
	DefaultStuckLimit         = 1000
	DefaultLeaseTTL           = 5 * time.Minute
	DefaultPickupWaitDeadline = 4 * time.Minute
	DefaultPickupPollInterval = time.Second
	DefaultRescheduleCooldown = time.Second
	DefaultMaxBatchSize       = 500
	DefaultOverfetchFactor    = 2
)

// DefaultFloorCutoff — nextExecutionAt раньше этой даты считаются историческим мусором.
var DefaultFloorCutoff = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Scheduler — control loop планирования синхронизаций зеркал.
type Scheduler struct {
	store    Store
	lease    Leaser
	tracker  *capacity.Tracker
	enqueuer Enqueuer
	pickup   PickupProbe
	logger   *slog.Logger

	stuckThreshold     time.Duration
	stuckLimit         int
	leaseTTL           time.Duration
	pickupWaitDeadline time.Duration
	pickupPollInterval time.Duration
	rescheduleCooldown time.Duration
	floorCutoff        time.Time
	maxBatchSize       int
	overfetchFactor    int
	readOnly           bool
	maintenance        bool

	now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		store:              cfg.Store,
		lease:              cfg.Lease,
		tracker:            cfg.Tracker,
		enqueuer:           cfg.Enqueuer,
		pickup:             cfg.Pickup,
		logger:             cfg.Logger,
		stuckThreshold:     cfg.StuckThreshold,
		stuckLimit:         cfg.StuckLimit,
		leaseTTL:           cfg.LeaseTTL,
		pickupWaitDeadline: cfg.PickupWaitDeadline,
		pickupPollInterval: cfg.PickupPollInterval,
		rescheduleCooldown: cfg.RescheduleCooldown,
		floorCutoff:        cfg.FloorCutoff,
		maxBatchSize:       cfg.MaxBatchSize,
		overfetchFactor:    cfg.OverfetchFactor,
		readOnly:           cfg.ReadOnly,
		maintenance:        cfg.Maintenance,
		now:                cfg.Now,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.stuckThreshold <= 0 {
		s.stuckThreshold = DefaultStuckThreshold
	}
	if s.stuckLimit <= 0 {
		s.stuckLimit = DefaultStuckLimit
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = DefaultLeaseTTL
	}
	if s.pickupWaitDeadline <= 0 {
		s.pickupWaitDeadline = DefaultPickupWaitDeadline
	}
	if s.pickupPollInterval <= 0 {
		s.pickupPollInterval = DefaultPickupPollInterval
	}
	if s.rescheduleCooldown <= 0 {
		s.rescheduleCooldown = DefaultRescheduleCooldown
	}
	if s.floorCutoff.IsZero() {
		s.floorCutoff = DefaultFloorCutoff
	}
	if s.maxBatchSize <= 0 {
		s.maxBatchSize = DefaultMaxBatchSize
	}
	if s.overfetchFactor <= 0 {
		s.overfetchFactor = DefaultOverfetchFactor
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RunPass выполняет один проход планирования.
//
//  1. read-only / maintenance — no-op
//  2. захват lease (занят — no-op)
//  3. reclaim зависших в scheduled
//  4. сброс счётчика capacity к числу реально выполняющихся синхронизаций
//  5. выборка due зеркал пачками и dispatch
//  6. ожидание pickup (если что-то поставлено)
//  7. освобождение lease — всегда
//  8. cooldown и решение о немедленном следующем проходе
//
// Отсутствие lease или свободных слотов — не ошибка, а Outcome в PassResult.
func (s *Scheduler) RunPass(ctx context.Context) (PassResult, error) {
	result := PassResult{PassID: uuid.NewString()}
	logger := telemetry.WithPassID(s.logger, result.PassID)

	ctx, span := telemetry.Tracer().Start(ctx, "mirrorsync.pass")
	defer span.End()
	span.SetAttributes(attribute.String("mirrorsync.pass_id", result.PassID))

	defer func() {
		telemetry.PassesTotal.WithLabelValues(string(result.Outcome)).Inc()
		span.SetAttributes(
			attribute.String("mirrorsync.outcome", string(result.Outcome)),
			attribute.Int("mirrorsync.scheduled", result.Scheduled),
		)
	}()

	if s.readOnly || s.maintenance {
		result.Outcome = OutcomeReadOnly
		logger.Debug("pass skipped: read-only or maintenance mode")
		return result, nil
	}

	token, ok, err := s.lease.Acquire(ctx, LeaseKey, s.leaseTTL)
	if err != nil {
		result.Outcome = OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire lease")
		return result, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		result.Outcome = OutcomeLeaseUnavailable
		logger.Debug("pass skipped: lease held by another scheduler")
		return result, nil
	}

	started := s.now()
	logger.Info("scheduling pass started")

	passErr := s.runLocked(ctx, logger, &result)

	// Lease освобождается всегда, даже если контекст прохода отменён
	if err := s.lease.Release(context.WithoutCancel(ctx), LeaseKey, token); err != nil {
		logger.Warn("failed to release lease", "error", err)
	}
	telemetry.PassDuration.Observe(s.now().Sub(started).Seconds())

	if passErr != nil {
		result.Outcome = OutcomeFailed
		span.RecordError(passErr)
		span.SetStatus(codes.Error, "pass failed")
		logger.Error("scheduling pass failed",
			"reclaimed", result.Reclaimed,
			"scheduled", result.Scheduled,
			"error", passErr,
		)
		return result, passErr
	}

	if result.Scheduled > 0 {
		result.Rescheduled = s.shouldReschedule(ctx, logger)
	}

	logger.Info("scheduling pass completed",
		"outcome", result.Outcome,
		"reclaimed", result.Reclaimed,
		"capacity", result.CapacityAtStart,
		"scheduled", result.Scheduled,
		"filtered", result.Filtered,
		"batches", result.Batches,
		"picked_up", result.PickedUp,
		"rescheduled", result.Rescheduled,
	)
	return result, nil
}

// runLocked — часть прохода под lease.
func (s *Scheduler) runLocked(ctx context.Context, logger *slog.Logger, result *PassResult) error {
	reclaimed, err := s.reclaimStuck(ctx, logger)
	result.Reclaimed = reclaimed
	if err != nil {
		return err
	}

	// Счётчик пересчитывается заново: всё, что не в scheduled/started, слот не занимает
	countedAt := s.now()
	inFlight, err := s.store.CountInFlight(ctx)
	if err != nil {
		return fmt.Errorf("count in-flight syncs: %w", err)
	}
	if err := s.tracker.ResetScheduling(ctx, inFlight, countedAt); err != nil {
		return err
	}

	available, err := s.tracker.AvailableCapacity(ctx)
	if err != nil {
		return err
	}
	result.CapacityAtStart = available
	defer s.observeCapacity(ctx)

	if available == 0 {
		result.Outcome = OutcomeNoCapacity
		return nil
	}

	if err := s.scheduleDue(ctx, logger, available, result); err != nil {
		return err
	}
	result.Outcome = OutcomeCompleted

	if result.Scheduled > 0 {
		result.PickedUp = s.awaitPickup(ctx, logger)
	}
	return nil
}

// shouldReschedule выдерживает cooldown и проверяет, остались ли свободные слоты.
func (s *Scheduler) shouldReschedule(ctx context.Context, logger *slog.Logger) bool {
	if !sleep(ctx, s.rescheduleCooldown) {
		return false
	}

	ok, err := s.tracker.ShouldRescheduleImmediately(ctx)
	if err != nil {
		logger.Warn("failed to check capacity for reschedule", "error", err)
		return false
	}
	return ok
}

func (s *Scheduler) observeCapacity(ctx context.Context) {
	current, err := s.tracker.CurrentScheduling(ctx)
	if err != nil {
		return
	}
	telemetry.CapacityInFlight.Set(float64(current))
	telemetry.CapacityAvailable.Set(float64(max(s.tracker.MaxCapacity()-current, 0)))
}

// sleep ждёт d или отмены ctx. Возвращает false, если ctx отменён.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// isCanceled проверяет, что ошибка вызвана отменой контекста.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
