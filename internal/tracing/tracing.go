// Package tracing builds the OpenTelemetry tracer provider handed to the
// transactional interceptors.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xraph/anvil/internal/config"
	"github.com/xraph/anvil/internal/errors"
)

// Provider owns a tracer provider and the exporters behind it.
type Provider struct {
	provider      trace.TracerProvider
	shutdownFuncs []func(context.Context) error
}

// New creates a provider from cfg. A disabled config yields a noop
// provider.
func New(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{provider: noop.NewTracerProvider()}, nil
	}

	p := &Provider{}

	exporter, err := p.createExporter(ctx, cfg)
	if err != nil {
		return nil, errors.ErrConfigError(fmt.Sprintf("failed to create %s exporter", cfg.Exporter), err)
	}

	return p.withExporter(cfg, exporter), nil
}

// NewWithExporter creates an enabled provider over exporter. Spans are
// exported synchronously, which suits tests and short-lived tools.
func NewWithExporter(cfg config.TracingConfig, exporter sdktrace.SpanExporter) *Provider {
	p := &Provider{}
	res := createResource(cfg)

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(cfg)),
		sdktrace.WithSyncer(exporter),
	)
	p.provider = sdk
	p.shutdownFuncs = append(p.shutdownFuncs, sdk.Shutdown)
	return p
}

func (p *Provider) withExporter(cfg config.TracingConfig, exporter sdktrace.SpanExporter) *Provider {
	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithResource(createResource(cfg)),
		sdktrace.WithSampler(createSampler(cfg)),
		sdktrace.WithBatcher(exporter),
	)
	p.provider = sdk
	// provider shutdown flushes the batcher and shuts the exporter down
	p.shutdownFuncs = append(p.shutdownFuncs, sdk.Shutdown)
	return p
}

// TracerProvider returns the provider to pass to txproxy.WithTracerProvider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.provider
}

// Shutdown flushes pending spans and releases the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdownFuncs) - 1; i >= 0; i-- {
		if err := p.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	return errors.Join(errs...)
}

func (p *Provider) createExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		return createOTLPExporter(ctx, cfg)
	case "jaeger":
		return createJaegerExporter(cfg)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

func createOTLPExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	return otlptracehttp.New(ctx, opts...)
}

func createJaegerExporter(cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("jaeger collector endpoint is required")
	}

	return jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(cfg.Endpoint),
		),
	)
}

func createResource(cfg config.TracingConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func createSampler(cfg config.TracingConfig) sdktrace.Sampler {
	if cfg.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
}
