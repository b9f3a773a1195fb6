package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scheduler.log")

	logger, closer, err := SetupLogger(LogConfig{Level: "INFO", Format: "json", File: path})
	if err != nil {
		t.Fatalf("setup logger: %v", err)
	}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	WithPassID(logger, "pass-1").Info("pass completed", "scheduled", 5)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"pass_id":"pass-1"`) {
		t.Errorf("log file does not contain pass_id: %s", data)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background(), nil) != slog.Default() {
		t.Error("expected default logger for empty context")
	}

	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("expected fallback logger for empty context")
	}

	logger := WithRepositoryID(slog.Default(), 42)
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx, fallback) != logger {
		t.Error("expected logger from context")
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{}, slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
