package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName — имя tracer'а scheduler'а.
const TracerName = "github.com/shaiso/mirrorsync"

// TracingConfig — параметры tracing.
type TracingConfig struct {
	Endpoint    string  // host:port OTLP/HTTP collector; пусто — tracing выключен
	Insecure    bool    // HTTP без TLS
	Sampling    float64 // доля сэмплируемых traces (default: 1.0)
	ServiceName string
	Version     string
}

// SetupTracing настраивает глобальный TracerProvider и W3C propagator.
//
// Propagator ставится всегда: даже без экспорта trace context
// входящих запросов передаётся в sync jobs.
// Возвращённая функция сбрасывает и останавливает exporter.
func SetupTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		logger.Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "mirrorsync-scheduler"
	}
	if cfg.Sampling <= 0 || cfg.Sampling > 1 {
		cfg.Sampling = 1.0
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Sampling))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		"endpoint", cfg.Endpoint,
		"sampling_ratio", cfg.Sampling,
		"insecure", cfg.Insecure,
	)
	return tp.Shutdown, nil
}

// Tracer возвращает tracer scheduler'а из глобального provider'а.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
