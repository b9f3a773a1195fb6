package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// --- Fake bucket ---

type fakeEntry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
	rev   uint64
}

func (e *fakeEntry) Key() string      { return e.key }
func (e *fakeEntry) Value() []byte    { return e.value }
func (e *fakeEntry) Revision() uint64 { return e.rev }

type fakeBucket struct {
	mu      sync.Mutex
	data    map[string]*fakeEntry
	nextRev uint64
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{data: make(map[string]*fakeEntry)}
}

func wrongRevision() error {
	return &jetstream.APIError{Code: 400, ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}
}

func (b *fakeBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	cp := *e
	return &cp, nil
}

func (b *fakeBucket) put(key string, value []byte) uint64 {
	b.nextRev++
	b.data[key] = &fakeEntry{key: key, value: append([]byte(nil), value...), rev: b.nextRev}
	return b.nextRev
}

func (b *fakeBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.put(key, value), nil
}

func (b *fakeBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return b.put(key, value), nil
}

func (b *fakeBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.data[key]
	if !ok || e.rev != revision {
		return 0, wrongRevision()
	}
	return b.put(key, value), nil
}

func (b *fakeBucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// --- Lease Tests ---

func TestLease_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	lease := NewLease(newFakeBucket())

	token, ok, err := lease.Acquire(ctx, "pass", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire, got ok=%v err=%v", ok, err)
	}

	_, ok, err = lease.Acquire(ctx, "pass", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("second acquire must fail while lease is held")
	}

	if err := lease.Release(ctx, "pass", token); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, ok, _ := lease.Acquire(ctx, "pass", time.Minute); !ok {
		t.Error("acquire after release should succeed")
	}
}

func TestLease_TakeOverExpired(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := NewLease(bucket)
	first.now = func() time.Time { return now }
	oldToken, ok, _ := first.Acquire(ctx, "pass", time.Minute)
	if !ok {
		t.Fatal("first acquire failed")
	}

	second := NewLease(bucket)
	second.now = func() time.Time { return now.Add(2 * time.Minute) }
	newToken, ok, err := second.Acquire(ctx, "pass", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected take-over of expired lease, got ok=%v err=%v", ok, err)
	}
	if newToken == oldToken {
		t.Error("take-over must issue a new token")
	}

	// Старый держатель не должен удалить чужой lease
	if err := first.Release(ctx, "pass", oldToken); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost, got %v", err)
	}
	if err := second.Release(ctx, "pass", newToken); err != nil {
		t.Errorf("release by new holder: %v", err)
	}
}

func TestLease_ReleaseMissingKey(t *testing.T) {
	lease := NewLease(newFakeBucket())
	if err := lease.Release(context.Background(), "pass", "whatever"); err != nil {
		t.Errorf("release of expired lease should be a no-op, got %v", err)
	}
}

func TestLease_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := NewLease(bucket).Acquire(ctx, "pass", time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one holder, got %d", winners)
	}
}

// --- Counter Tests ---

func TestCounter_AddAndClamp(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(newFakeBucket(), "in_flight")

	if v, err := c.Value(ctx); err != nil || v != 0 {
		t.Fatalf("expected 0 for missing key, got %d (%v)", v, err)
	}

	if v, _ := c.Add(ctx, 5); v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
	if v, _ := c.Add(ctx, -2); v != 3 {
		t.Errorf("expected 3, got %d", v)
	}
	if v, _ := c.Add(ctx, -10); v != 0 {
		t.Errorf("expected clamp to 0, got %d", v)
	}

	if err := c.Set(ctx, -4); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := c.Value(ctx); v != 0 {
		t.Errorf("negative set must clamp to 0, got %d", v)
	}
}

func TestCounter_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewCounter(bucket, "in_flight")
			for {
				if _, err := c.Add(ctx, 1); err == nil {
					return
				} else if !errors.Is(err, ErrCASConflict) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, err := NewCounter(bucket, "in_flight").Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != workers {
		t.Errorf("expected %d, got %d", workers, v)
	}
}

func TestIsWrongRevision(t *testing.T) {
	if !isWrongRevision(wrongRevision()) {
		t.Error("wrong last sequence should be detected")
	}
	if isWrongRevision(errors.New("boom")) {
		t.Error("plain error is not a revision conflict")
	}
	if isWrongRevision(nil) {
		t.Error("nil is not a revision conflict")
	}
}

// --- Memory Tests ---

func TestMemoryLease_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLease()
	l.now = func() time.Time { return now }

	token, ok, _ := l.Acquire(ctx, "pass", time.Minute)
	if !ok {
		t.Fatal("acquire failed")
	}
	if _, ok, _ := l.Acquire(ctx, "pass", time.Minute); ok {
		t.Fatal("lease must be exclusive")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := l.Acquire(ctx, "pass", time.Minute); !ok {
		t.Fatal("expired lease should be taken over")
	}
	if err := l.Release(ctx, "pass", token); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost, got %v", err)
	}
}

func TestMemoryCounter_NeverNegative(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	if v, _ := c.Add(ctx, -1); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
}
