package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLease — lease на pg_try_advisory_lock.
//
// Используется, когда NATS недоступен. Блокировка держится на выделенном
// соединении пула: если процесс упал, сессия закрывается и PostgreSQL
// снимает блокировку сам, поэтому ttl здесь не нужен.
type AdvisoryLease struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	held map[string]heldLock // token -> соединение с блокировкой
}

type heldLock struct {
	key  string
	conn *pgxpool.Conn
}

// NewAdvisoryLease создаёт AdvisoryLease.
func NewAdvisoryLease(pool *pgxpool.Pool) *AdvisoryLease {
	return &AdvisoryLease{
		pool: pool,
		held: make(map[string]heldLock),
	}
}

// Acquire пытается взять advisory lock для key. Не блокируется.
func (l *AdvisoryLease) Acquire(ctx context.Context, key string, _ time.Duration) (string, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return "", false, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtextextended($1, 0))", key).Scan(&ok); err != nil {
		conn.Release()
		return "", false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return "", false, nil
	}

	token := uuid.NewString()
	l.mu.Lock()
	l.held[token] = heldLock{key: key, conn: conn}
	l.mu.Unlock()
	return token, true, nil
}

// Release снимает блокировку и возвращает соединение в пул.
// Чужой или уже освобождённый token игнорируется.
func (l *AdvisoryLease) Release(ctx context.Context, key, token string) error {
	lock, ok := l.take(key, token)
	if !ok {
		return nil
	}
	defer lock.conn.Release()

	var released bool
	if err := lock.conn.QueryRow(ctx, "SELECT pg_advisory_unlock(hashtextextended($1, 0))", lock.key).Scan(&released); err != nil {
		// Соединение в неизвестном состоянии — закрываем, чтобы PostgreSQL снял блокировку
		_ = lock.conn.Conn().Close(ctx)
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// take забирает блокировку token, только если она взята для key.
// При несовпадении key запись остаётся: её владелец освободит её сам.
func (l *AdvisoryLease) take(key, token string) (heldLock, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.held[token]
	if !ok || lock.key != key {
		return heldLock{}, false
	}
	delete(l.held, token)
	return lock, true
}
