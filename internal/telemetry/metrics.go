package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики scheduler'а. Регистрируются в глобальном registry при импорте пакета.
var (
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorsync_passes_total",
		Help: "Scheduling passes by outcome",
	}, []string{"outcome"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirrorsync_pass_duration_seconds",
		Help:    "Duration of scheduling passes that held the lease",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	MirrorsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorsync_mirrors_scheduled_total",
		Help: "Repositories transitioned to scheduled and enqueued",
	})

	MirrorsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorsync_mirrors_filtered_total",
		Help: "Due repositories skipped because they are no longer eligible",
	})

	StuckReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorsync_stuck_reclaimed_total",
		Help: "Syncs stuck in scheduled that were force-failed",
	})

	DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorsync_dispatch_failures_total",
		Help: "Batches whose scheduled transition or enqueue failed",
	})

	CapacityInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrorsync_capacity_in_flight",
		Help: "Mirror syncs counted as in flight at the end of the last pass",
	})

	CapacityAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrorsync_capacity_available",
		Help: "Free mirror sync slots at the end of the last pass",
	})

	SyncEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorsync_sync_events_total",
		Help: "Worker events consumed by type",
	}, []string{"type"})

	EventDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorsync_event_deliveries_total",
		Help: "Deliveries from the events queue by settlement: ack, requeue, dead_letter",
	}, []string{"settlement"})

	BrokerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorsync_rabbitmq_reconnects_total",
		Help: "Successful RabbitMQ reconnects after a lost connection",
	})
)
