package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket — подмножество jetstream.KeyValue, которое использует пакет.
type Bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// Store — типизированный доступ к KV bucket.
type Store struct {
	kv Bucket
}

// NewStore оборачивает KV bucket.
func NewStore(kv Bucket) *Store {
	return &Store{kv: kv}
}

// Get возвращает значение и revision ключа.
func (s *Store) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

// Put безусловно записывает значение.
func (s *Store) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	return s.kv.Put(ctx, key, value)
}

// Create записывает значение, только если ключа нет.
// Возвращает jetstream.ErrKeyExists, если ключ уже существует.
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	return s.kv.Create(ctx, key, value)
}

// Update записывает значение, только если revision совпадает.
func (s *Store) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	return s.kv.Update(ctx, key, value, revision)
}

// Delete удаляет ключ. С jetstream.LastRevision удаление условное.
func (s *Store) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	return s.kv.Delete(ctx, key, opts...)
}

// GetJSON читает и распаковывает JSON значение.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (uint64, error) {
	data, rev, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return 0, fmt.Errorf("unmarshal key %s: %w", key, err)
	}
	return rev, nil
}
