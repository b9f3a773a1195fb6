package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/mirrorsync/internal/domain"
)

// MirrorRepo — репозиторий для работы с зеркалами и их SyncState.
type MirrorRepo struct {
	pool *pgxpool.Pool
}

// NewMirrorRepo создаёт новый MirrorRepo.
func NewMirrorRepo(pool *pgxpool.Pool) *MirrorRepo {
	return &MirrorRepo{pool: pool}
}

const mirrorColumns = `
	r.id, r.full_path, r.mirror_enabled, r.archived, r.pending_delete,
	s.status, s.next_execution_at, s.scheduled_at, s.retry_count, s.hard_failed,
	s.last_error, s.updated_at
`

// ListDue возвращает due зеркала строго после cursor и не позже asOf,
// упорядоченные по (next_execution_at, id).
//
// Зеркала в SCHEDULED/STARTED не возвращаются. Флаги репозитория
// (mirror_enabled и т.д.) здесь не фильтруются: это делает вызывающий.
func (r *MirrorRepo) ListDue(ctx context.Context, cursor domain.Cursor, asOf time.Time, limit int) ([]domain.DueMirror, error) {
	query := `
		SELECT ` + mirrorColumns + `
		FROM mirror_sync_states s
		JOIN repositories r ON r.id = s.repository_id
		WHERE s.status NOT IN ('scheduled', 'started')
		  AND s.next_execution_at IS NOT NULL
		  AND s.next_execution_at <= $3
		  AND (s.next_execution_at, s.repository_id) > ($1, $2)
		ORDER BY s.next_execution_at ASC, s.repository_id ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, cursor.At, cursor.ID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due mirrors: %w", err)
	}
	defer rows.Close()

	var mirrors []domain.DueMirror
	for rows.Next() {
		m, err := scanMirror(rows)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, *m)
	}
	return mirrors, rows.Err()
}

// ListStuck возвращает записи в SCHEDULED с scheduled_at раньше before.
func (r *MirrorRepo) ListStuck(ctx context.Context, before time.Time, limit int) ([]domain.SyncState, error) {
	query := `
		SELECT repository_id, status, next_execution_at, scheduled_at, retry_count,
		       hard_failed, last_error, updated_at
		FROM mirror_sync_states
		WHERE status = 'scheduled'
		  AND scheduled_at < $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck syncs: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	return states, rows.Err()
}

// MarkStuckFailed переводит зависшую запись в FAILED.
//
// Условие на scheduled_at защищает от гонки: если job успел стартовать
// или запись была заново запланирована, строка не изменится и вернётся false.
func (r *MirrorRepo) MarkStuckFailed(ctx context.Context, repositoryID int64, scheduledAt time.Time, reason string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE mirror_sync_states
		SET status = 'failed', last_error = $3, updated_at = NOW()
		WHERE repository_id = $1
		  AND status = 'scheduled'
		  AND scheduled_at = $2
	`, repositoryID, scheduledAt, reason)
	if err != nil {
		return false, fmt.Errorf("mark stuck sync failed: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CountInFlight возвращает число синхронизаций в SCHEDULED или STARTED.
func (r *MirrorRepo) CountInFlight(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM mirror_sync_states WHERE status IN ('scheduled', 'started')
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count in-flight syncs: %w", err)
	}
	return count, nil
}

// EnqueueFunc ставит sync jobs в очередь для уже переведённых в SCHEDULED репозиториев.
type EnqueueFunc func(ctx context.Context, repositoryIDs []int64) error

// MarkScheduled переводит репозитории в SCHEDULED и вызывает enqueue в одной транзакции.
//
// Возвращает ID, которые действительно были переведены (в порядке ids).
// Если enqueue вернул ошибку, транзакция откатывается и статусы не меняются.
func (r *MirrorRepo) MarkScheduled(ctx context.Context, ids []int64, at time.Time, enqueue EnqueueFunc) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `
		UPDATE mirror_sync_states
		SET status = 'scheduled', scheduled_at = $2, updated_at = $2
		WHERE repository_id = ANY($1)
		  AND status NOT IN ('scheduled', 'started')
		RETURNING repository_id
	`, ids, at)
	if err != nil {
		return nil, fmt.Errorf("mark scheduled: %w", err)
	}
	updated, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect scheduled ids: %w", err)
	}

	scheduled := keepOrder(ids, updated)
	if len(scheduled) == 0 {
		return nil, nil
	}

	if err := enqueue(ctx, scheduled); err != nil {
		return nil, fmt.Errorf("enqueue sync jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return scheduled, nil
}

// GetMirror возвращает зеркало по ID репозитория.
func (r *MirrorRepo) GetMirror(ctx context.Context, repositoryID int64) (*domain.DueMirror, error) {
	query := `
		SELECT ` + mirrorColumns + `
		FROM mirror_sync_states s
		JOIN repositories r ON r.id = s.repository_id
		WHERE r.id = $1
	`
	m, err := scanMirror(r.pool.QueryRow(ctx, query, repositoryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ForceSync делает зеркало due немедленно.
// Возвращает ErrInvalidState, если синхронизация уже в процессе.
func (r *MirrorRepo) ForceSync(ctx context.Context, repositoryID int64, now time.Time) (*domain.DueMirror, error) {
	m, err := r.GetMirror(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if m.State.Status.IsInFlight() {
		return nil, fmt.Errorf("%w: mirror is %s", ErrInvalidState, m.State.Status)
	}

	m.State.ForceSync(now)

	result, err := r.pool.Exec(ctx, `
		UPDATE mirror_sync_states
		SET next_execution_at = $2, retry_count = $3, hard_failed = $4, updated_at = $5
		WHERE repository_id = $1
		  AND status NOT IN ('scheduled', 'started')
	`, repositoryID, m.State.NextExecutionAt, m.State.RetryCount, m.State.HardFailed, m.State.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("force sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Между чтением и записью зеркало успели запланировать
		return nil, fmt.Errorf("%w: mirror became in flight", ErrInvalidState)
	}
	return m, nil
}

// --- Helpers ---

// keepOrder возвращает элементы ids, присутствующие в subset, сохраняя порядок ids.
func keepOrder(ids, subset []int64) []int64 {
	set := make(map[int64]struct{}, len(subset))
	for _, id := range subset {
		set[id] = struct{}{}
	}

	result := make([]int64, 0, len(subset))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			result = append(result, id)
			delete(set, id)
		}
	}
	return result
}

func scanMirror(row pgx.Row) (*domain.DueMirror, error) {
	var m domain.DueMirror
	var lastError *string

	err := row.Scan(
		&m.Repository.ID,
		&m.Repository.FullPath,
		&m.Repository.MirrorEnabled,
		&m.Repository.Archived,
		&m.Repository.PendingDelete,
		&m.State.Status,
		&m.State.NextExecutionAt,
		&m.State.ScheduledAt,
		&m.State.RetryCount,
		&m.State.HardFailed,
		&lastError,
		&m.State.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan mirror: %w", err)
	}
	if !m.State.Status.IsValid() {
		return nil, fmt.Errorf("repository %d: %w %q", m.Repository.ID, ErrUnknownStatus, m.State.Status)
	}

	m.State.RepositoryID = m.Repository.ID
	if lastError != nil {
		m.State.LastError = *lastError
	}
	return &m, nil
}

func scanState(row pgx.Row) (*domain.SyncState, error) {
	var s domain.SyncState
	var lastError *string

	err := row.Scan(
		&s.RepositoryID,
		&s.Status,
		&s.NextExecutionAt,
		&s.ScheduledAt,
		&s.RetryCount,
		&s.HardFailed,
		&lastError,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan sync state: %w", err)
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("repository %d: %w %q", s.RepositoryID, ErrUnknownStatus, s.Status)
	}

	if lastError != nil {
		s.LastError = *lastError
	}
	return &s, nil
}
