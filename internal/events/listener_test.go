package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/mirrorsync/internal/capacity"
	"github.com/shaiso/mirrorsync/internal/kv"
	"github.com/shaiso/mirrorsync/internal/mq"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

func delivery(msgType mq.MessageType, payload any) *mq.Delivery {
	return &mq.Delivery{Message: mq.Message{ID: "m-1", Type: msgType, Payload: payload}}
}

var resetAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newListener(t *testing.T, inFlight int) (*Listener, *kv.MemoryCounter) {
	t.Helper()
	counter := kv.NewMemoryCounter()
	tracker := capacity.New(capacity.Config{Counter: counter, MaxCapacity: 10})
	if err := tracker.ResetScheduling(context.Background(), inFlight, resetAt); err != nil {
		t.Fatal(err)
	}
	return NewListener(tracker, slog.New(slog.NewTextHandler(io.Discard, nil))), counter
}

func TestListener_ReleasesOnCompletion(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		msgType mq.MessageType
		want    int64
	}{
		{"finished", mq.MessageTypeSyncFinished, 2},
		{"failed", mq.MessageTypeSyncFailed, 2},
		{"started keeps slot", mq.MessageTypeSyncStarted, 3},
		{"unknown ignored", mq.MessageType("mirror.sync.paused"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, counter := newListener(t, 3)

			err := l.Handle(ctx, delivery(tt.msgType, mq.SyncEventPayload{RepositoryID: 7}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got, _ := counter.Value(ctx); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestListener_DuplicateEventsNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, counter := newListener(t, 1)

	for range 3 {
		if err := l.Handle(ctx, delivery(mq.MessageTypeSyncFinished, mq.SyncEventPayload{RepositoryID: 7})); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := counter.Value(ctx); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestListener_MalformedPayloadAcked(t *testing.T) {
	l, counter := newListener(t, 2)

	err := l.Handle(context.Background(), delivery(mq.MessageTypeSyncFinished, map[string]any{"repository_id": "not-a-number"}))
	if err != nil {
		t.Errorf("malformed event must not be retried, got %v", err)
	}
	if got, _ := counter.Value(context.Background()); got != 2 {
		t.Errorf("counter must not change, got %d", got)
	}
}

type failingReleaser struct{}

func (failingReleaser) UntrackCompleted(context.Context, time.Time) (bool, error) {
	return false, errors.New("nats timeout")
}

func TestListener_ReleaseErrorRequeues(t *testing.T) {
	l := NewListener(failingReleaser{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := l.Handle(context.Background(), delivery(mq.MessageTypeSyncFailed, mq.SyncEventPayload{RepositoryID: 7}))
	if err == nil {
		t.Error("expected error so the event is requeued")
	}
}

func TestListener_CompletionBeforeResetKeepsCount(t *testing.T) {
	ctx := context.Background()
	l, counter := newListener(t, 3)

	before := resetAt.Add(-10 * time.Second)
	late := delivery(mq.MessageTypeSyncFinished, mq.SyncEventPayload{RepositoryID: 7, FinishedAt: &before})
	if err := l.Handle(ctx, late); err != nil {
		t.Fatal(err)
	}
	if got, _ := counter.Value(ctx); got != 3 {
		t.Errorf("sync already excluded from baseline, expected 3, got %d", got)
	}

	after := resetAt.Add(10 * time.Second)
	if err := l.Handle(ctx, delivery(mq.MessageTypeSyncFailed, mq.SyncEventPayload{RepositoryID: 8, FinishedAt: &after})); err != nil {
		t.Fatal(err)
	}
	if got, _ := counter.Value(ctx); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestListener_FallsBackToMessageTimestamp(t *testing.T) {
	ctx := context.Background()
	l, counter := newListener(t, 2)

	d := delivery(mq.MessageTypeSyncFinished, mq.SyncEventPayload{RepositoryID: 7})
	d.Message.Timestamp = resetAt.Add(-time.Minute)
	if err := l.Handle(ctx, d); err != nil {
		t.Fatal(err)
	}
	if got, _ := counter.Value(ctx); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestListener_UsesDeliveryLogger(t *testing.T) {
	var buf bytes.Buffer
	deliveryLogger := slog.New(slog.NewTextHandler(&buf, nil)).With("queue", "mirrors.events")
	ctx := telemetry.WithLogger(context.Background(), deliveryLogger)

	l, _ := newListener(t, 1)
	if err := l.Handle(ctx, delivery(mq.MessageTypeSyncFailed, mq.SyncEventPayload{RepositoryID: 7, Error: "timeout"})); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "queue=mirrors.events") || !strings.Contains(buf.String(), "repository_id=7") {
		t.Errorf("expected delivery-scoped log line, got %q", buf.String())
	}
}
