// Package otel configures OpenTelemetry tracing for forms service processes.
package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/mw/forms/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings holds the tracing environment.
type Settings struct {
	Endpoint    string  `env:"OTEL_ENDPOINT"`
	Enabled     string  `env:"OTEL_ENABLED"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether tracing should be installed.
func (s Settings) Active() bool {
	if strings.EqualFold(strings.TrimSpace(s.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(s.Endpoint) != ""
}

func (s Settings) sampler() sdktrace.Sampler {
	if s.SampleRatio <= 0 || s.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))
}

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when MW_FORMS_OTEL_ENDPOINT is empty or
// MW_FORMS_OTEL_ENABLED is "false", Setup returns a no-op shutdown
// function and no global provider is registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return noop, fmt.Errorf("otel settings: %w", err)
	}
	if !settings.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(settings.Endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(settings.sampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
