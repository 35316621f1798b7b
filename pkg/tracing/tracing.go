// Package tracing wires OpenTelemetry trace export over OTLP/gRPC.
//
// With no endpoint configured Setup leaves the global no-op provider in
// place, so instrumented code pays nothing when tracing is off.
package tracing

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/duration"
)

// InstrumentationName is the tracer name used by the pipeline packages.
const InstrumentationName = "github.com/hostaudit/hostaudit"

// Options configures the exporter.
type Options struct {
	// Endpoint is the OTLP collector address (e.g. "localhost:4317").
	// Empty disables export.
	Endpoint string

	// ServiceName defaults to the tool name.
	ServiceName string

	// Insecure dials without TLS.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string

	// ConnectTimeout bounds exporter construction (default 10s).
	ConnectTimeout time.Duration

	// ShutdownTimeout bounds the final flush (default 5s).
	ShutdownTimeout time.Duration
}

// Provider owns the SDK tracer provider, if any.
type Provider struct {
	tp              *sdktrace.TracerProvider
	shutdownTimeout time.Duration
}

// Setup builds the exporter and installs the provider globally.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = duration.TelemetryConnect
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.TelemetryShutdown
	}
	p := &Provider{shutdownTimeout: opts.ShutdownTimeout}
	if opts.Endpoint == "" {
		return p, nil
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	cctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	exporter, err := otlptracegrpc.New(cctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(opts.ServiceName)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(p.tp)
	return p, nil
}

// newResource avoids merging with resource.Default to prevent schema URL
// conflicts between semconv versions.
func newResource(service string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "audit-pipeline"),
	)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p != nil && p.tp != nil }

// Tracer returns the pipeline tracer from the installed provider.
func (p *Provider) Tracer() trace.Tracer {
	if p.Enabled() {
		return p.tp.Tracer(InstrumentationName)
	}
	return otel.Tracer(InstrumentationName)
}

// Shutdown flushes pending spans. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
