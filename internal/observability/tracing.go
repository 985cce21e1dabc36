package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conduct-dev/conduct/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "conduct"
)

// TracingOption is a functional option for configuring tracing initialization.
type TracingOption func(*tracingOptions)

// tracingOptions holds configuration options for tracing initialization.
type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
}

// WithSampler sets a custom sampler for the tracer provider.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithResource sets a custom resource for the tracer provider.
// The resource describes the entity producing telemetry (service name, version, etc.).
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) {
		o.resource = res
	}
}

// WithBatchTimeout sets the maximum time between batch exports.
// Spans are exported when this timeout is reached, even if the batch is not full.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// InitTracing initializes distributed tracing with the specified configuration.
// It supports the "otlp" and "noop" providers.
//
// When cfg.Enabled is false, returns a no-op tracer provider that doesn't
// record spans. The no-op provider has zero overhead and is safe to use in
// production.
func InitTracing(ctx context.Context, cfg TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing configuration: %w", err)
	}

	options := &tracingOptions{
		batchTimeout: defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		options.sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	if options.resource == nil {
		serviceName := cfg.ServiceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}

		// Use resource.New to avoid schema URL conflicts when merging
		// resource.Default() and custom attributes with different schema versions
		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version.Version),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		options.resource = res
	}

	var exporter sdktrace.SpanExporter

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "otlp":
		otlpOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}

		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			// TLS with client certificate
			creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertFile, "")
			if err != nil {
				return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
			}
			otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
		} else if cfg.InsecureMode {
			// Insecure connection, only if explicitly opted in
			otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
		} else {
			// Default: system TLS (no client cert, but verify server)
			creds := credentials.NewTLS(nil)
			otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
		}

		var err error
		exporter, err = otlptracegrpc.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect otlp exporter at %s: %w", cfg.Endpoint, err)
		}

	case "noop":
		return sdktrace.NewTracerProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported tracing provider: %s", cfg.Provider)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(options.batchTimeout),
		),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing gracefully shuts down the tracer provider, flushing any
// pending spans. It should be called before application exit so all
// telemetry is exported. The context timeout bounds how long to wait for
// in-flight exports; 5-10 seconds is reasonable.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	return nil
}
