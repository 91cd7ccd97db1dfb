package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/modelkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded around invocations.
type Metrics struct {
	invocationTotal    metric.Int64Counter
	invocationDuration metric.Float64Histogram
	batchSize          metric.Int64Histogram
	errorTotal         metric.Int64Counter
	fallbackTotal      metric.Int64Counter
	fetchTotal         metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocationTotal, err := meter.Int64Counter("modelkit.invocation.total",
		metric.WithDescription("Total number of unit invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.total counter: %w", err)
	}

	invocationDuration, err := meter.Float64Histogram("modelkit.invocation.duration",
		metric.WithDescription("Duration of unit invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.duration histogram: %w", err)
	}

	batchSize, err := meter.Int64Histogram("modelkit.batch.size",
		metric.WithDescription("Items per batched compute call"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.size histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("modelkit.error.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	fallbackTotal, err := meter.Int64Counter("modelkit.device.fallback.total",
		metric.WithDescription("Scopes served on the cpu instead of the requested accelerator"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating device.fallback.total counter: %w", err)
	}

	fetchTotal, err := meter.Int64Counter("modelkit.artifact.fetch.total",
		metric.WithDescription("Artifact resolutions by source and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating artifact.fetch.total counter: %w", err)
	}

	return &Metrics{
		invocationTotal:    invocationTotal,
		invocationDuration: invocationDuration,
		batchSize:          batchSize,
		errorTotal:         errorTotal,
		fallbackTotal:      fallbackTotal,
		fetchTotal:         fetchTotal,
	}, nil
}

// RecordInvocation records one compute call.
func (m *Metrics) RecordInvocation(ctx context.Context, task, unit, device, status string, duration time.Duration) {
	m.invocationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTask, task),
		attribute.String(AttrUnit, unit),
		attribute.String(AttrDevice, device),
		attribute.String(AttrStatus, status),
	))
	m.invocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrTask, task),
		attribute.String(AttrUnit, unit),
	))
}

// RecordBatch records the size of one batched compute call.
func (m *Metrics) RecordBatch(ctx context.Context, unit string, size int) {
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String(AttrUnit, unit)))
}

// RecordError records an error by code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}

// RecordFallback records a gpu request served on the cpu.
func (m *Metrics) RecordFallback(ctx context.Context, requested string) {
	m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("requested", requested)))
}

// RecordFetch records an artifact resolution.
func (m *Metrics) RecordFetch(ctx context.Context, source, status string) {
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String(AttrStatus, status),
	))
}
