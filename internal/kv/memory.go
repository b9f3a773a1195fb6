package kv

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLease — Lease в памяти процесса.
//
// Используется, когда NATS недоступен (один экземпляр scheduler'а)
// и в тестах. Семантика совпадает с Lease: истёкший lease перехватывается.
type MemoryLease struct {
	mu     sync.Mutex
	leases map[string]memoryLeaseEntry
	now    func() time.Time
}

type memoryLeaseEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLease создаёт пустой MemoryLease.
func NewMemoryLease() *MemoryLease {
	return &MemoryLease{
		leases: make(map[string]memoryLeaseEntry),
		now:    time.Now,
	}
}

// Acquire захватывает lease, если он свободен или истёк.
func (l *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.leases[key] = memoryLeaseEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release освобождает lease. Чужой token — ErrLeaseLost.
func (l *MemoryLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.leases[key]
	if !ok {
		return nil
	}
	if current.token != token {
		return ErrLeaseLost
	}
	delete(l.leases, key)
	return nil
}

// MemoryCounter — Counter в памяти процесса.
type MemoryCounter struct {
	mu    sync.Mutex
	value int64
}

// NewMemoryCounter создаёт счётчик с нулевым значением.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (c *MemoryCounter) Value(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *MemoryCounter) Add(_ context.Context, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = max(c.value+delta, 0)
	return c.value, nil
}

func (c *MemoryCounter) Set(_ context.Context, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = max(value, 0)
	return nil
}
