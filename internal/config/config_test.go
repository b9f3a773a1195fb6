package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := cfg.Scheduler
	if s.MaxCapacity != 100 || s.CapacityThreshold != 1 {
		t.Errorf("unexpected capacity defaults: %d/%d", s.MaxCapacity, s.CapacityThreshold)
	}
	if s.StuckThreshold != 30*time.Minute {
		t.Errorf("expected stuck threshold 30m, got %s", s.StuckThreshold)
	}
	if s.LeaseTTL != 5*time.Minute || s.PickupWaitDeadline != 4*time.Minute {
		t.Errorf("unexpected lease/pickup defaults: %s/%s", s.LeaseTTL, s.PickupWaitDeadline)
	}
	if s.MaxBatchSize != 500 || s.OverfetchFactor != 2 {
		t.Errorf("unexpected batch defaults: %d/%d", s.MaxBatchSize, s.OverfetchFactor)
	}
	if !s.FloorCutoffTime.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected floor cutoff: %v", s.FloorCutoffTime)
	}
	if cfg.HTTP.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.HTTP.Port)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("NATS must be off by default, got %q", cfg.NATS.URL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("MIRRORSYNC_SCHEDULER_MAX_CAPACITY", "250")
	t.Setenv("MIRRORSYNC_SCHEDULER_STUCK_THRESHOLD", "45m")
	t.Setenv("MIRRORSYNC_SCHEDULER_READ_ONLY", "true")
	t.Setenv("MIRRORSYNC_NATS_URL", "nats://nats:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.MaxCapacity != 250 {
		t.Errorf("expected 250, got %d", cfg.Scheduler.MaxCapacity)
	}
	if cfg.Scheduler.StuckThreshold != 45*time.Minute {
		t.Errorf("expected 45m, got %s", cfg.Scheduler.StuckThreshold)
	}
	if !cfg.Scheduler.ReadOnly {
		t.Error("expected read-only")
	}
	if cfg.NATS.URL != "nats://nats:4222" {
		t.Errorf("unexpected NATS url %q", cfg.NATS.URL)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("DB_URL", "postgresql://legacy/db")
	t.Setenv("RABBITMQ_URL", "amqp://legacy/")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgresql://legacy/db" {
		t.Errorf("expected legacy DB_URL, got %q", cfg.Database.URL)
	}
	if cfg.RabbitMQ.URL != "amqp://legacy/" {
		t.Errorf("expected legacy RABBITMQ_URL, got %q", cfg.RabbitMQ.URL)
	}

	t.Setenv("MIRRORSYNC_DATABASE_URL", "postgresql://new/db")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.URL != "postgresql://new/db" {
		t.Errorf("prefixed variable must win, got %q", cfg.Database.URL)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirrorsync.yaml")
	yaml := `
scheduler:
  max_capacity: 20
  capacity_threshold: 5
  floor_cutoff: "2023-06-01T00:00:00Z"
  trigger_schedule: "*/2 * * * *"
http:
  port: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.MaxCapacity != 20 || cfg.Scheduler.CapacityThreshold != 5 {
		t.Errorf("unexpected capacity: %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.TriggerSchedule != "*/2 * * * *" {
		t.Errorf("unexpected schedule %q", cfg.Scheduler.TriggerSchedule)
	}
	if cfg.Scheduler.FloorCutoffTime.Year() != 2023 {
		t.Errorf("unexpected floor %v", cfg.Scheduler.FloorCutoffTime)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected 9090, got %d", cfg.HTTP.Port)
	}
	// Не заданное в файле остаётся по умолчанию
	if cfg.Scheduler.StuckLimit != 1000 {
		t.Errorf("expected default stuck limit, got %d", cfg.Scheduler.StuckLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"MIRRORSYNC_SCHEDULER_MAX_CAPACITY":       "0",
		"MIRRORSYNC_SCHEDULER_CAPACITY_THRESHOLD": "1000",
		"MIRRORSYNC_SCHEDULER_TRIGGER_SCHEDULE":   "sometimes",
		"MIRRORSYNC_SCHEDULER_FLOOR_CUTOFF":       "yesterday",
		"MIRRORSYNC_SCHEDULER_LEASE_TTL":          "1m",
	}

	for env, value := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv(ConfigPathEnv, "")
			t.Setenv(env, value)

			if _, err := Load(""); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
