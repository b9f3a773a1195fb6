package repo

import (
	"context"
	"testing"
)

func TestAdvisoryLease_TakeRequiresMatchingKey(t *testing.T) {
	l := NewAdvisoryLease(nil)
	l.held["token-1"] = heldLock{key: "mirror_sync.scheduling_pass"}

	if _, ok := l.take("other.key", "token-1"); ok {
		t.Fatal("lock must not be taken under a different key")
	}
	if _, ok := l.held["token-1"]; !ok {
		t.Fatal("mismatched release must keep the lock tracked")
	}

	lock, ok := l.take("mirror_sync.scheduling_pass", "token-1")
	if !ok || lock.key != "mirror_sync.scheduling_pass" {
		t.Fatalf("expected lock for matching key, got %+v (%v)", lock, ok)
	}
	if len(l.held) != 0 {
		t.Errorf("taken lock must be forgotten, held: %v", l.held)
	}

	if _, ok := l.take("mirror_sync.scheduling_pass", "token-1"); ok {
		t.Error("second release of the same token must be a no-op")
	}
}

func TestAdvisoryLease_ReleaseUnknownToken(t *testing.T) {
	l := NewAdvisoryLease(nil)
	if err := l.Release(context.Background(), "mirror_sync.scheduling_pass", "missing"); err != nil {
		t.Errorf("unknown token must be ignored, got %v", err)
	}
}
