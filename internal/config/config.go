package config

import (
	"fmt"
	"time"

	"github.com/shaiso/mirrorsync/internal/capacity"
	"github.com/shaiso/mirrorsync/internal/scheduler"
)

// Config — конфигурация scheduler'а.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	NATS      NATSConfig      `mapstructure:"nats"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// SchedulerConfig — параметры прохода планирования.
type SchedulerConfig struct {
	MaxCapacity        int           `mapstructure:"max_capacity"`
	CapacityThreshold  int           `mapstructure:"capacity_threshold"`
	StuckThreshold     time.Duration `mapstructure:"stuck_threshold"`
	StuckLimit         int           `mapstructure:"stuck_limit"`
	LeaseTTL           time.Duration `mapstructure:"lease_ttl"`
	PickupWaitDeadline time.Duration `mapstructure:"pickup_wait_deadline"`
	PickupPollInterval time.Duration `mapstructure:"pickup_poll_interval"`
	RescheduleCooldown time.Duration `mapstructure:"reschedule_cooldown"`
	FloorCutoff        string        `mapstructure:"floor_cutoff"` // RFC 3339
	MaxBatchSize       int           `mapstructure:"max_batch_size"`
	OverfetchFactor    int           `mapstructure:"overfetch_factor"`
	TriggerSchedule    string        `mapstructure:"trigger_schedule"`
	CounterTTL         time.Duration `mapstructure:"counter_ttl"`
	ReadOnly           bool          `mapstructure:"read_only"`
	Maintenance        bool          `mapstructure:"maintenance"`

	// FloorCutoffTime — разобранный FloorCutoff, заполняется при загрузке.
	FloorCutoffTime time.Time `mapstructure:"-"`
}

// DatabaseConfig — подключение к PostgreSQL.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RabbitMQConfig — подключение к RabbitMQ.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// NATSConfig — подключение к NATS и имена KV buckets.
// Пустой URL — lease и счётчик работают без NATS (advisory lock + память).
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	LeaseBucket    string `mapstructure:"lease_bucket"`
	CapacityBucket string `mapstructure:"capacity_bucket"`
}

// HTTPConfig — admin API, /healthz, /metrics.
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig — логирование.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TracingConfig — экспорт traces.
type TracingConfig struct {
	Endpoint string  `mapstructure:"endpoint"`
	Insecure bool    `mapstructure:"insecure"`
	Sampling float64 `mapstructure:"sampling"`
}

// Validate проверяет диапазоны значений.
func (c *Config) Validate() error {
	s := &c.Scheduler

	if err := capacity.Validate(s.MaxCapacity, s.CapacityThreshold); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	durations := map[string]time.Duration{
		"scheduler.stuck_threshold":      s.StuckThreshold,
		"scheduler.lease_ttl":            s.LeaseTTL,
		"scheduler.pickup_wait_deadline": s.PickupWaitDeadline,
		"scheduler.pickup_poll_interval": s.PickupPollInterval,
		"scheduler.reschedule_cooldown":  s.RescheduleCooldown,
		"scheduler.counter_ttl":          s.CounterTTL,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, key, d)
		}
	}

	if s.StuckLimit <= 0 {
		return fmt.Errorf("%w: scheduler.stuck_limit must be positive", ErrInvalid)
	}
	if s.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: scheduler.max_batch_size must be positive", ErrInvalid)
	}
	if s.OverfetchFactor < 1 {
		return fmt.Errorf("%w: scheduler.overfetch_factor must be at least 1", ErrInvalid)
	}
	if s.PickupPollInterval > s.PickupWaitDeadline {
		return fmt.Errorf("%w: pickup poll interval exceeds pickup wait deadline", ErrInvalid)
	}

	// Lease должен пережить ожидание pickup, иначе его перехватят посреди прохода
	if s.LeaseTTL <= s.PickupWaitDeadline {
		return fmt.Errorf("%w: scheduler.lease_ttl (%s) must exceed pickup_wait_deadline (%s)",
			ErrInvalid, s.LeaseTTL, s.PickupWaitDeadline)
	}

	floor, err := time.Parse(time.RFC3339, s.FloorCutoff)
	if err != nil {
		return fmt.Errorf("%w: scheduler.floor_cutoff: %v", ErrInvalid, err)
	}
	s.FloorCutoffTime = floor.UTC()

	if err := scheduler.ValidateCronExpr(s.TriggerSchedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port out of range: %d", ErrInvalid, c.HTTP.Port)
	}
	return nil
}
