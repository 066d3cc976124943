// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires OpenTelemetry tracing and metrics plus trace-aware
// structured logging for SkillsLike services.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and tears down the telemetry pipeline.
type ShutdownFunc func(context.Context) error

// Config selects the exporter backend.
type Config struct {
	Exporter     string // "stdout" (default) or "otlp"
	OTLPEndpoint string
	OTLPInsecure bool
}

// Init sets up the OpenTelemetry SDK for the service and installs the global
// tracer and meter providers.
func Init(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}

	var tp *trace.TracerProvider
	var mp *metric.MeterProvider
	switch cfg.Exporter {
	case "", "stdout":
		tp, mp, err = stdoutProviders(res)
	case "otlp":
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("otlp endpoint is required")
		}
		tp, mp, err = otlpProviders(res, cfg)
	default:
		return nil, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown errors: %v", errs)
		}
		return nil
	}, nil
}

func stdoutProviders(res *resource.Resource) (*trace.TracerProvider, *metric.MeterProvider, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}
	tp, mp := buildProviders(res, traceExporter, metricExporter)
	return tp, mp, nil
}

func otlpProviders(res *resource.Resource, cfg Config) (*trace.TracerProvider, *metric.MeterProvider, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(context.Background(), traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(context.Background(), metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	tp, mp := buildProviders(res, traceExporter, metricExporter)
	return tp, mp, nil
}

func buildProviders(res *resource.Resource, te trace.SpanExporter, me metric.Exporter) (*trace.TracerProvider, *metric.MeterProvider) {
	tp := trace.NewTracerProvider(
		trace.WithBatcher(te, trace.WithBatchTimeout(time.Second)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(me, metric.WithInterval(time.Minute))),
		metric.WithResource(res),
	)
	return tp, mp
}
