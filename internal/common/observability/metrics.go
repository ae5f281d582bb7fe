package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	inFlight      otelmetric.Int64UpDownCounter
}

// New registers an otel meter provider backed by the prometheus exporter.
// On exporter failure it returns a recorder whose methods are no-ops.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"checklist.generation.runs",
		otelmetric.WithDescription("Number of checklist generation runs"),
	)

	runDuration, _ := meter.Float64Histogram(
		"checklist.generation.duration",
		otelmetric.WithDescription("Checklist generation run duration"),
		otelmetric.WithUnit("ms"),
	)

	inFlight, _ := meter.Int64UpDownCounter(
		"checklist.generation.in_flight",
		otelmetric.WithDescription("Generation runs currently executing in this process"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		runCounter:    runCounter,
		runDuration:   runDuration,
		inFlight:      inFlight,
	}, nil
}

// RunStarted marks a background generation as started and returns the
// function that records its end.
func (o *Observability) RunStarted(ctx context.Context) func(mode, status string) {
	start := time.Now()
	if o != nil && o.inFlight != nil {
		o.inFlight.Add(ctx, 1)
	}
	return func(mode, status string) {
		if o == nil {
			return
		}
		if o.inFlight != nil {
			o.inFlight.Add(ctx, -1)
		}
		o.RecordRun(ctx, time.Since(start), mode, status)
	}
}

func (o *Observability) RecordRun(ctx context.Context, duration time.Duration, mode, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
