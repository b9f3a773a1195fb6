package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/mirrorsync/internal/domain"
	"github.com/shaiso/mirrorsync/internal/repo"
)

// --- Fakes ---

type fakeMirrors struct {
	mirrors map[int64]*domain.DueMirror
	err     error
}

func (f *fakeMirrors) GetMirror(_ context.Context, id int64) (*domain.DueMirror, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.mirrors[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeMirrors) ForceSync(ctx context.Context, id int64, now time.Time) (*domain.DueMirror, error) {
	m, err := f.GetMirror(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.State.Status.IsInFlight() {
		return nil, fmt.Errorf("%w: mirror is %s", repo.ErrInvalidState, m.State.Status)
	}
	m.State.ForceSync(now)
	return m, nil
}

type fakeCapacity struct {
	max, inFlight int
	err           error
}

func (f *fakeCapacity) MaxCapacity() int { return f.max }

func (f *fakeCapacity) CurrentScheduling(context.Context) (int, error) {
	return f.inFlight, f.err
}

type fakeTrigger struct{ kicks int }

func (f *fakeTrigger) Kick() { f.kicks++ }

// --- Helpers ---

func newTestServer(mirrors *fakeMirrors, capacity *fakeCapacity, trigger *fakeTrigger) *http.ServeMux {
	h := NewHandler(Config{
		Mirrors:  mirrors,
		Capacity: capacity,
		Trigger:  trigger,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func sampleMirror(id int64, status domain.SyncStatus) *domain.DueMirror {
	next := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.DueMirror{
		Repository: domain.Repository{ID: id, FullPath: "group/project", MirrorEnabled: true},
		State:      domain.SyncState{RepositoryID: id, Status: status, NextExecutionAt: &next, RetryCount: 3, HardFailed: true},
	}
}

// --- Tests ---

func TestGetCapacity(t *testing.T) {
	mux := newTestServer(&fakeMirrors{}, &fakeCapacity{max: 10, inFlight: 4}, &fakeTrigger{})

	rec := do(t, mux, http.MethodGet, "/api/v1/capacity")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got := decodeData[CapacityResponse](t, rec)
	want := CapacityResponse{MaxCapacity: 10, InFlight: 4, Available: 6}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestGetCapacity_Error(t *testing.T) {
	mux := newTestServer(&fakeMirrors{}, &fakeCapacity{err: errors.New("nats down")}, &fakeTrigger{})

	rec := do(t, mux, http.MethodGet, "/api/v1/capacity")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestTriggerPass(t *testing.T) {
	trigger := &fakeTrigger{}
	mux := newTestServer(&fakeMirrors{}, &fakeCapacity{max: 1}, trigger)

	rec := do(t, mux, http.MethodPost, "/api/v1/passes")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if trigger.kicks != 1 {
		t.Errorf("expected one kick, got %d", trigger.kicks)
	}
}

func TestGetMirror(t *testing.T) {
	mirrors := &fakeMirrors{mirrors: map[int64]*domain.DueMirror{7: sampleMirror(7, domain.SyncStatusFinished)}}
	mux := newTestServer(mirrors, &fakeCapacity{max: 1}, &fakeTrigger{})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"found", "/api/v1/mirrors/7", http.StatusOK},
		{"missing", "/api/v1/mirrors/8", http.StatusNotFound},
		{"bad id", "/api/v1/mirrors/abc", http.StatusBadRequest},
		{"negative id", "/api/v1/mirrors/-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodGet, tt.path)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}

	rec := do(t, mux, http.MethodGet, "/api/v1/mirrors/7")
	got := decodeData[MirrorResponse](t, rec)
	if got.RepositoryID != 7 || got.Status != domain.SyncStatusFinished {
		t.Errorf("unexpected mirror %+v", got)
	}
	if got.Eligible {
		t.Error("hard failed mirror must not be eligible")
	}
}

func TestForceSync(t *testing.T) {
	mirrors := &fakeMirrors{mirrors: map[int64]*domain.DueMirror{
		7: sampleMirror(7, domain.SyncStatusFailed),
		9: sampleMirror(9, domain.SyncStatusStarted),
	}}
	trigger := &fakeTrigger{}
	mux := newTestServer(mirrors, &fakeCapacity{max: 1}, trigger)

	rec := do(t, mux, http.MethodPost, "/api/v1/mirrors/7/force-sync")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	got := decodeData[MirrorResponse](t, rec)
	if got.HardFailed || got.RetryCount != 0 {
		t.Errorf("force sync must reset failures, got %+v", got)
	}
	if !got.Eligible {
		t.Error("forced mirror must be eligible")
	}
	if trigger.kicks != 1 {
		t.Errorf("expected a pass to be requested, got %d kicks", trigger.kicks)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/mirrors/9/force-sync")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("in-flight mirror: expected 422, got %d", rec.Code)
	}
	if trigger.kicks != 1 {
		t.Error("rejected force sync must not request a pass")
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
