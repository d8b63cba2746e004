// Package tracing sets up OpenTelemetry span export (Init) and provides
// span helpers for iterations, sub-agent spawns and REPL evaluations. Only
// Init is called (from cmd/rlmengine); no package starts these spans, so
// the installed provider exports nothing. Grounded on the teacher's
// internal/domain/agent/react/tracing.go span-helper shape and
// nevindra-oasis's observer.Init exporter/provider bootstrap, extended with
// a Backend selector so a deployment can point at an OTLP collector, a
// Jaeger collector, or a Zipkin collector without code changes (SPEC_FULL.md
// §2.1 Observability).
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// Backend selects which exporter Init wires up.
type Backend string

const (
	BackendNone  Backend = ""
	BackendOTLP  Backend = "otlp"
	BackendJaeger Backend = "jaeger"
	BackendZipkin Backend = "zipkin"
)

// Config selects the exporter and its endpoint.
type Config struct {
	Backend     Backend
	Endpoint    string // OTLP collector host:port, Jaeger collector endpoint, or Zipkin collector URL
	ServiceName string
}

const tracerScope = "rlm"

// Init builds a TracerProvider for cfg.Backend and installs it as the
// global provider. BackendNone installs a no-op provider so callers never
// need to branch on whether tracing is enabled. The returned shutdown func
// must be called on process exit.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Backend == BackendNone {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "rlm"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	exp, err := buildExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Backend {
	case BackendOTLP:
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("building otlp exporter: %w", err)
		}
		return exp, nil
	case BackendJaeger:
		var collectorOpts []jaeger.CollectorEndpointOption
		if cfg.Endpoint != "" {
			collectorOpts = append(collectorOpts, jaeger.WithEndpoint(cfg.Endpoint))
		}
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(collectorOpts...))
		if err != nil {
			return nil, fmt.Errorf("building jaeger exporter: %w", err)
		}
		return exp, nil
	case BackendZipkin:
		exp, err := zipkin.New(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("building zipkin exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported tracing backend %q", cfg.Backend)
	}
}
