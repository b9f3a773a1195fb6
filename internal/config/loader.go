package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/shaiso/mirrorsync/internal/kv"
	"github.com/shaiso/mirrorsync/internal/mq"
	"github.com/shaiso/mirrorsync/internal/repo"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "MIRRORSYNC"

// ConfigPathEnv — переменная с путём к YAML файлу конфигурации.
const ConfigPathEnv = "MIRRORSYNC_CONFIG"

// legacyEnv — переменные окружения, которые читались до появления конфигурации.
var legacyEnv = map[string]string{
	"database.url": "DB_URL",
	"rabbitmq.url": "RABBITMQ_URL",
	"nats.url":     "NATS_URL",
	"log.level":    "LOG_LEVEL",
	"log.format":   "LOG_FORMAT",
	"http.port":    "SCHED_PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.max_capacity", 100)
	v.SetDefault("scheduler.capacity_threshold", 1)
	v.SetDefault("scheduler.stuck_threshold", "30m")
	v.SetDefault("scheduler.stuck_limit", 1000)
	v.SetDefault("scheduler.lease_ttl", "5m")
	v.SetDefault("scheduler.pickup_wait_deadline", "4m")
	v.SetDefault("scheduler.pickup_poll_interval", "1s")
	v.SetDefault("scheduler.reschedule_cooldown", "1s")
	v.SetDefault("scheduler.floor_cutoff", "2020-01-01T00:00:00Z")
	v.SetDefault("scheduler.max_batch_size", 500)
	v.SetDefault("scheduler.overfetch_factor", 2)
	v.SetDefault("scheduler.trigger_schedule", "* * * * *")
	v.SetDefault("scheduler.counter_ttl", "1h")
	v.SetDefault("scheduler.read_only", false)
	v.SetDefault("scheduler.maintenance", false)

	v.SetDefault("database.url", repo.DefaultDSN)
	v.SetDefault("rabbitmq.url", mq.DefaultURL())
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.lease_bucket", kv.DefaultLeaseBucket)
	v.SetDefault("nats.capacity_bucket", kv.DefaultCapacityBucket)

	v.SetDefault("http.port", 8081)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sampling", 1.0)
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML файл
// (path или MIRRORSYNC_CONFIG), затем переменные окружения MIRRORSYNC_*.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
