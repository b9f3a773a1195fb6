package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Имена buckets по умолчанию.
const (
	DefaultLeaseBucket    = "mirrorsync-leases"
	DefaultCapacityBucket = "mirrorsync-capacity"
)

// BucketsConfig — параметры KV buckets.
type BucketsConfig struct {
	LeaseBucket    string
	LeaseTTL       time.Duration
	CapacityBucket string
	CounterTTL     time.Duration
}

// Buckets — открытые KV buckets scheduler'а.
type Buckets struct {
	Leases   jetstream.KeyValue
	Capacity jetstream.KeyValue
}

// Connect подключается к NATS и создаёт JetStream контекст.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("mirrorsync-scheduler"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	return nc, js, nil
}

// SetupBuckets создаёт (или обновляет) buckets и возвращает их.
func SetupBuckets(ctx context.Context, js jetstream.JetStream, cfg BucketsConfig) (*Buckets, error) {
	if cfg.LeaseBucket == "" {
		cfg.LeaseBucket = DefaultLeaseBucket
	}
	if cfg.CapacityBucket == "" {
		cfg.CapacityBucket = DefaultCapacityBucket
	}

	create := func(name string, ttl time.Duration) (jetstream.KeyValue, error) {
		kvCfg := jetstream.KeyValueConfig{
			Bucket:  name,
			Storage: jetstream.FileStorage,
			History: 1,
		}
		if ttl > 0 {
			kvCfg.TTL = ttl
		}
		bucket, err := js.CreateOrUpdateKeyValue(ctx, kvCfg)
		if err != nil {
			return nil, fmt.Errorf("creating KV bucket %s: %w", name, err)
		}
		return bucket, nil
	}

	leases, err := create(cfg.LeaseBucket, cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	capacity, err := create(cfg.CapacityBucket, cfg.CounterTTL)
	if err != nil {
		return nil, err
	}

	return &Buckets{Leases: leases, Capacity: capacity}, nil
}
