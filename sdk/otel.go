package sdk

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/leapcode/keymanager/core/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitOtelSDK registers a global tracer provider exporting to the configured OTLP/HTTP
// collector. The returned function flushes and stops it. With tracing disabled the
// global no-op provider is left in place.
func InitOtelSDK(ctx context.Context, svcName string, conf config.OTELConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !conf.Traces.Enabled {
		return noop, nil
	}

	resources, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", svcName),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("could not set otel resources: %w", err)
	}

	tp, err := setupTracerProvider(ctx, resources, conf.Traces)
	if err != nil {
		return noop, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func setupTracerProvider(ctx context.Context, resources *resource.Resource, conf config.OTELTracesConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(fmt.Sprintf("%s:%d", conf.Hostname, conf.Port)),
	}
	if conf.Scheme != "https" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("could not create otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resources),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// GetCallerFunctionName returns the bare name of the calling function or method.
func GetCallerFunctionName() string {
	pc, _, _, _ := runtime.Caller(1)

	split := strings.Split(runtime.FuncForPC(pc).Name(), ".")
	return split[len(split)-1]
}
