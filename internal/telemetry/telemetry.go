// Package telemetry wires the process's own OpenTelemetry pipeline: OTLP
// trace and metric export for the HTTP layer. This is the server observing
// itself; the execution spans it tracks for callers are a separate model
// and never flow through these providers.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Intake requests are short and arrive in bursts when an orchestrator
// finishes a run; a short batch window keeps its spans from sitting in the
// exporter queue long after the run completed.
const (
	traceBatchTimeout  = 2 * time.Second
	metricPushInterval = 30 * time.Second
)

// Shutdown flushes and stops the providers installed by Init.
type Shutdown func(ctx context.Context) error

// Init installs global tracer and meter providers exporting over OTLP HTTP
// to endpoint. An empty endpoint disables export entirely: the globals stay
// no-op and the returned Shutdown does nothing, so callers never branch.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	stopTraces, err := setupTraces(ctx, endpoint, insecure, res)
	if err != nil {
		return nil, err
	}
	stopMetrics, err := setupMetrics(ctx, endpoint, insecure, res)
	if err != nil {
		_ = stopTraces(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		traceErr := stopTraces(ctx)
		if err := stopMetrics(ctx); err != nil && traceErr == nil {
			traceErr = err
		}
		return traceErr
	}, nil
}

func setupTraces(ctx context.Context, endpoint string, insecure bool, res *resource.Resource) (Shutdown, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(traceBatchTimeout)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// W3C Trace Context and Baggage propagation. Incoming traceparent
	// headers ride alongside the x-execution-* headers; the two identity
	// schemes are independent.
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp.Shutdown, nil
}

func setupMetrics(ctx context.Context, endpoint string, insecure bool, res *resource.Resource) (Shutdown, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricPushInterval)),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
