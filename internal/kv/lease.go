package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// leaseRecord — значение ключа lease.
type leaseRecord struct {
	Token     string    `json:"token"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lease — распределённая взаимоисключающая блокировка с TTL поверх NATS KV.
//
// Захват — Create (атомарно, только если ключа нет). Если ключ есть,
// но срок записанного lease истёк (держатель упал до того, как bucket TTL
// удалил ключ), lease перехватывается через Update с проверкой revision.
type Lease struct {
	store  *Store
	holder string
	now    func() time.Time
}

// NewLease создаёт Lease поверх bucket.
func NewLease(bucket Bucket) *Lease {
	holder, _ := os.Hostname()
	return &Lease{
		store:  NewStore(bucket),
		holder: fmt.Sprintf("%s/%d", holder, os.Getpid()),
		now:    time.Now,
	}
}

// Acquire пытается захватить lease.
//
// ok=false без ошибки означает, что lease держит кто-то другой —
// это штатная ситуация, а не сбой.
func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	data, err := json.Marshal(leaseRecord{
		Token:     token,
		Holder:    l.holder,
		ExpiresAt: l.now().Add(ttl),
	})
	if err != nil {
		return "", false, fmt.Errorf("marshal lease: %w", err)
	}

	_, err = l.store.Create(ctx, key, data)
	if err == nil {
		return token, true, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return "", false, fmt.Errorf("create lease %s: %w", key, err)
	}

	// Ключ занят — проверяем, жив ли держатель
	var current leaseRecord
	rev, err := l.store.GetJSON(ctx, key, &current)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			// Ключ исчез между Create и Get — следующий триггер его займёт
			return "", false, nil
		}
		return "", false, fmt.Errorf("read lease %s: %w", key, err)
	}

	if l.now().Before(current.ExpiresAt) {
		return "", false, nil
	}

	if _, err := l.store.Update(ctx, key, data, rev); err != nil {
		if isWrongRevision(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("take over lease %s: %w", key, err)
	}
	return token, true, nil
}

// Release освобождает lease, если он всё ещё принадлежит token.
//
// Если lease уже истёк и ключ удалён, Release ничего не делает.
// Если lease перехвачен, возвращается ErrLeaseLost.
func (l *Lease) Release(ctx context.Context, key, token string) error {
	var current leaseRecord
	rev, err := l.store.GetJSON(ctx, key, &current)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read lease %s: %w", key, err)
	}

	if current.Token != token {
		return ErrLeaseLost
	}

	if err := l.store.Delete(ctx, key, jetstream.LastRevision(rev)); err != nil {
		if isWrongRevision(err) {
			return ErrLeaseLost
		}
		return fmt.Errorf("delete lease %s: %w", key, err)
	}
	return nil
}
