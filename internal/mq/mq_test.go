package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func tracedContext(t *testing.T) context.Context {
	t.Helper()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestBuildSyncPublishings(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := []int64{11, 12, 13}

	pubs, err := buildSyncPublishings(tracedContext(t), ids, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pubs) != len(ids) {
		t.Fatalf("expected %d publishings, got %d", len(ids), len(pubs))
	}

	seen := make(map[string]bool)
	for i, pub := range pubs {
		if pub.DeliveryMode != amqp.Persistent {
			t.Errorf("message %d must be persistent", i)
		}
		if seen[pub.MessageId] {
			t.Errorf("duplicate message id %s", pub.MessageId)
		}
		seen[pub.MessageId] = true

		var msg struct {
			Type    MessageType    `json:"type"`
			Payload SyncJobPayload `json:"payload"`
		}
		if err := json.Unmarshal(pub.Body, &msg); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if msg.Type != MessageTypeSyncRequested {
			t.Errorf("expected type %s, got %s", MessageTypeSyncRequested, msg.Type)
		}
		if msg.Payload.RepositoryID != ids[i] {
			t.Errorf("expected repository %d, got %d", ids[i], msg.Payload.RepositoryID)
		}
		if msg.Payload.TraceContext["traceparent"] == "" {
			t.Error("payload must carry traceparent")
		}
		if pub.Headers["traceparent"] == nil {
			t.Error("headers must carry traceparent")
		}
	}
}

func TestBuildSyncPublishings_NoTrace(t *testing.T) {
	pubs, err := buildSyncPublishings(context.Background(), []int64{1}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var msg Message
	if err := json.Unmarshal(pubs[0].Body, &msg); err != nil {
		t.Fatal(err)
	}
	payload, err := ParsePayload[SyncJobPayload](&msg)
	if err != nil {
		t.Fatal(err)
	}
	if payload.RepositoryID != 1 {
		t.Errorf("expected repository 1, got %d", payload.RepositoryID)
	}
}

func TestHeaderCarrier(t *testing.T) {
	h := headerCarrier(amqp.Table{"traceparent": "abc", "x-retry": int32(3)})

	if got := h.Get("traceparent"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := h.Get("x-retry"); got != "" {
		t.Errorf("non-string header must read as empty, got %q", got)
	}

	h.Set("tracestate", "k=v")
	if len(h.Keys()) != 3 {
		t.Errorf("expected 3 keys, got %v", h.Keys())
	}
}

func TestParsePayload_Event(t *testing.T) {
	msg := &Message{
		Type:    MessageTypeSyncFailed,
		Payload: map[string]any{"repository_id": float64(42), "error": "timeout"},
	}

	payload, err := ParsePayload[SyncEventPayload](msg)
	if err != nil {
		t.Fatal(err)
	}
	if payload.RepositoryID != 42 || payload.Error != "timeout" {
		t.Errorf("unexpected payload %+v", payload)
	}
}
