// Mirrorsync Scheduler — планирует синхронизации pull-зеркал.
//
// Scheduler:
//   - Возвращает в оборот синхронизации, зависшие в SCHEDULED
//   - Выбирает due зеркала в порядке (next_execution_at, id)
//   - Ставит sync jobs в RabbitMQ, не превышая лимит capacity
//   - Освобождает слоты по событиям завершения синхронизаций
//
// Несколько экземпляров можно запускать параллельно: проход защищён lease
// в NATS KV (или advisory lock в PostgreSQL, если NATS не настроен).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/mirrorsync/internal/api"
	"github.com/shaiso/mirrorsync/internal/capacity"
	"github.com/shaiso/mirrorsync/internal/config"
	"github.com/shaiso/mirrorsync/internal/events"
	"github.com/shaiso/mirrorsync/internal/kv"
	"github.com/shaiso/mirrorsync/internal/mq"
	"github.com/shaiso/mirrorsync/internal/repo"
	"github.com/shaiso/mirrorsync/internal/scheduler"
	"github.com/shaiso/mirrorsync/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mirrorsync-scheduler:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger, logCloser, err := telemetry.SetupLogger(telemetry.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger.Info("starting mirrorsync-scheduler", "version", version)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Sampling:    cfg.Tracing.Sampling,
		ServiceName: "mirrorsync-scheduler",
		Version:     version,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	mirrorRepo := repo.NewMirrorRepo(pool)

	// Lease и счётчик capacity: NATS KV или деградированный режим
	var (
		leaser    scheduler.Leaser
		counter   capacity.Counter
		resetMark capacity.Marker
	)
	if cfg.NATS.URL != "" {
		nc, js, err := kv.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Close()

		buckets, err := kv.SetupBuckets(ctx, js, kv.BucketsConfig{
			LeaseBucket:    cfg.NATS.LeaseBucket,
			LeaseTTL:       cfg.Scheduler.LeaseTTL,
			CapacityBucket: cfg.NATS.CapacityBucket,
			CounterTTL:     cfg.Scheduler.CounterTTL,
		})
		if err != nil {
			return err
		}
		leaser = kv.NewLease(buckets.Leases)
		counter = kv.NewCounter(buckets.Capacity, capacity.CounterKey)
		resetMark = kv.NewCounter(buckets.Capacity, capacity.ResetMarkKey)
		logger.Info("NATS connected", "lease_bucket", buckets.Leases.Bucket(), "capacity_bucket", buckets.Capacity.Bucket())
	} else {
		leaser = repo.NewAdvisoryLease(pool)
		counter = kv.NewMemoryCounter()
		resetMark = kv.NewMemoryCounter()
		logger.Warn("NATS not configured, using advisory lock lease and process-local capacity counter")
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer mqConn.Close()

	logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())

	tracker := capacity.New(capacity.Config{
		Counter:     counter,
		MaxCapacity: cfg.Scheduler.MaxCapacity,
		Threshold:   cfg.Scheduler.CapacityThreshold,
		Logger:      logger,
		ResetMark:   resetMark,
	})

	sched := scheduler.New(scheduler.Config{
		Store:              mirrorRepo,
		Lease:              leaser,
		Tracker:            tracker,
		Enqueuer:           mq.NewPublisher(mqConn, logger),
		Pickup:             mq.NewInspector(mqConn),
		Logger:             logger,
		StuckThreshold:     cfg.Scheduler.StuckThreshold,
		StuckLimit:         cfg.Scheduler.StuckLimit,
		LeaseTTL:           cfg.Scheduler.LeaseTTL,
		PickupWaitDeadline: cfg.Scheduler.PickupWaitDeadline,
		PickupPollInterval: cfg.Scheduler.PickupPollInterval,
		RescheduleCooldown: cfg.Scheduler.RescheduleCooldown,
		FloorCutoff:        cfg.Scheduler.FloorCutoffTime,
		MaxBatchSize:       cfg.Scheduler.MaxBatchSize,
		OverfetchFactor:    cfg.Scheduler.OverfetchFactor,
		ReadOnly:           cfg.Scheduler.ReadOnly,
		Maintenance:        cfg.Scheduler.Maintenance,
	})

	trigger, err := scheduler.NewTrigger(sched, cfg.Scheduler.TriggerSchedule, logger)
	if err != nil {
		return err
	}

	// События завершения синхронизаций освобождают слоты
	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueMirrorEvents),
		Handler:  events.NewListener(tracker, logger).Handle,
		Prefetch: 10,
	})

	// HTTP mux: /healthz + /metrics + admin API
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})
	mux.Handle("/metrics", promhttp.Handler())

	api.NewHandler(api.Config{
		Mirrors:  mirrorRepo,
		Capacity: tracker,
		Trigger:  trigger,
		Logger:   logger,
	}).RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("events consumer: %w", err)
		}
	}()
	go func() {
		if err := trigger.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("trigger: %w", err)
		}
	}()

	// Первый проход сразу при старте, не дожидаясь cron
	trigger.Kick()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("component failed, shutting down", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("mirrorsync-scheduler stopped")
	return runErr
}
