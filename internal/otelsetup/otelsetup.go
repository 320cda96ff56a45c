// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package otelsetup bootstraps OpenTelemetry and the structured logger used
// by the ghrest command.
package otelsetup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted in OTEL_TRACES_EXPORTER and OTEL_METRICS_EXPORTER.
const (
	ExporterNone    = "none"
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
)

// Setup initializes OpenTelemetry from the OTEL_TRACES_EXPORTER and
// OTEL_METRICS_EXPORTER environment variables. Unset variables mean "none",
// so a command line invocation exports nothing unless asked to. When metrics
// are enabled, Go runtime and host metrics are collected too.
//
// The returned shutdown function flushes and stops every provider that was
// started. It is never nil.
func Setup(ctx context.Context, serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("creating otel resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	spanExporter, err := newSpanExporter(ctx, exporterName("OTEL_TRACES_EXPORTER"))
	if err != nil {
		return shutdown, err
	}
	if spanExporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	metricExporter, err := newMetricExporter(ctx, exporterName("OTEL_METRICS_EXPORTER"))
	if err != nil {
		return shutdown, err
	}
	if metricExporter != nil {
		mp := metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(metricExporter)),
			metric.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)

		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			return shutdown, fmt.Errorf("starting runtime metrics: %w", err)
		}
		if err := host.Start(host.WithMeterProvider(mp)); err != nil {
			return shutdown, fmt.Errorf("starting host metrics: %w", err)
		}
	}

	return shutdown, nil
}

func exporterName(envVar string) string {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(envVar)))
	if name == "" {
		return ExporterNone
	}
	return name
}

// newSpanExporter returns nil for ExporterNone.
func newSpanExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterNone:
		return nil, nil
	case ExporterConsole:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case ExporterOTLP:
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTEL_TRACES_EXPORTER value %q", name)
	}
}

// newMetricExporter returns nil for ExporterNone.
func newMetricExporter(ctx context.Context, name string) (metric.Exporter, error) {
	switch name {
	case ExporterNone:
		return nil, nil
	case ExporterConsole:
		return stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	case ExporterOTLP:
		return otlpmetrichttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTEL_METRICS_EXPORTER value %q", name)
	}
}

// NewLogger creates a slog.Logger writing to w at the given level. Format is
// "json" or "text". The logger redacts the tokenKeys query parameters and
// adds span correlation, see LogHandler.
func NewLogger(w io.Writer, level slog.Level, format string, tokenKeys ...string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return slog.New(NewLogHandler(h, tokenKeys...)), nil
}

// ParseLevel converts a level name such as "debug" or "WARN" to a
// slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
