package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go/jetstream"
)

// maxCASAttempts — сколько раз Add повторяет compare-and-swap при конфликте.
const maxCASAttempts = 16

// errRevisionChanged — значение изменили между чтением и записью.
var errRevisionChanged = errors.New("revision changed")

// Counter — целочисленный счётчик в одном ключе KV bucket.
//
// Инкременты и декременты атомарны: значение читается вместе с revision
// и записывается через Update(revision). Значение никогда не уходит ниже нуля.
// Каждая запись продлевает TTL ключа; если процессы перестали писать,
// ключ истекает и счётчик читается как 0.
type Counter struct {
	store *Store
	key   string
}

// NewCounter создаёт Counter для ключа key.
func NewCounter(bucket Bucket, key string) *Counter {
	return &Counter{store: NewStore(bucket), key: key}
}

// Value возвращает текущее значение. Отсутствующий ключ — 0.
func (c *Counter) Value(ctx context.Context) (int64, error) {
	v, _, err := c.read(ctx)
	return v, err
}

// Add атомарно прибавляет delta и возвращает новое значение (не меньше 0).
// Конфликты revision повторяются с экспоненциальной паузой и jitter.
func (c *Counter) Add(ctx context.Context, delta int64) (int64, error) {
	next, err := backoff.Retry[int64](ctx, func() (int64, error) {
		return c.tryAdd(ctx, delta)
	},
		backoff.WithBackOff(casBackOff()),
		backoff.WithMaxTries(maxCASAttempts),
	)
	if errors.Is(err, errRevisionChanged) {
		return 0, fmt.Errorf("add to counter %s: %w", c.key, ErrCASConflict)
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// tryAdd — одна попытка compare-and-swap.
func (c *Counter) tryAdd(ctx context.Context, delta int64) (int64, error) {
	current, rev, err := c.read(ctx)
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	next := max(current+delta, 0)
	data := []byte(strconv.FormatInt(next, 10))

	if rev == 0 {
		_, err = c.store.Create(ctx, c.key, data)
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, errRevisionChanged
		}
	} else {
		_, err = c.store.Update(ctx, c.key, data, rev)
		if isWrongRevision(err) {
			return 0, errRevisionChanged
		}
	}
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("write counter %s: %w", c.key, err))
	}
	return next, nil
}

func casBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	return b
}

// Set безусловно записывает значение (отрицательные приводятся к 0).
func (c *Counter) Set(ctx context.Context, value int64) error {
	data := []byte(strconv.FormatInt(max(value, 0), 10))
	if _, err := c.store.Put(ctx, c.key, data); err != nil {
		return fmt.Errorf("set counter %s: %w", c.key, err)
	}
	return nil
}

// read возвращает значение и revision; revision 0 — ключа нет.
func (c *Counter) read(ctx context.Context) (int64, uint64, error) {
	data, rev, err := c.store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read counter %s: %w", c.key, err)
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse counter %s: %w", c.key, err)
	}
	return v, rev, nil
}
