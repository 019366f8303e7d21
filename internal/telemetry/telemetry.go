package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/razornet-sec/smartlist/internal/config"
	"github.com/razornet-sec/smartlist/internal/core"
	"github.com/razornet-sec/smartlist/pkg/types"
)

type telemetry struct {
	tracer         trace.Tracer
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	recommendCounter metric.Int64Counter
	fallbackCounter  metric.Int64Counter
	scoringDuration  metric.Float64Histogram
	appendErrCounter metric.Int64Counter
}

func New(ctx context.Context, cfg config.TelemetryConfig) (core.Telemetry, error) {
	if !cfg.Enabled {
		return core.NoopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	recommendCounter, err := meter.Int64Counter("smartlist.recommendations.total",
		metric.WithDescription("Total number of recommendation requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCounter, err := meter.Int64Counter("smartlist.fallback.total",
		metric.WithDescription("Recommendations served from the generic fallback path"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	scoringDuration, err := meter.Float64Histogram("smartlist.scoring.duration",
		metric.WithDescription("Scoring pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	appendErrCounter, err := meter.Int64Counter("smartlist.history.append_errors",
		metric.WithDescription("Selection history append failures (non-fatal)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:           tracer,
		meter:            meter,
		tracerProvider:   tp,
		recommendCounter: recommendCounter,
		fallbackCounter:  fallbackCounter,
		scoringDuration:  scoringDuration,
		appendErrCounter: appendErrCounter,
	}, nil
}

func (t *telemetry) RecordRecommendation(tier types.ConfidenceTier, duration float64, fallback bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("recommendation.confidence", string(tier)),
		attribute.Bool("recommendation.fallback", fallback),
	}

	t.recommendCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.scoringDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	if fallback {
		t.fallbackCounter.Add(ctx, 1)
	}
}

func (t *telemetry) RecordAppendError() {
	t.appendErrCounter.Add(context.Background(), 1)
}

func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}
