package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "git.home.luguber.info/inful/sitepack"

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled controls whether spans are recorded. When false a no-op
	// tracer is installed.
	Enabled bool
	// File receives JSON encoded spans. Parent directories are created.
	File string
	// ServiceName identifies the process in exported spans.
	ServiceName string
}

// TracerProvider owns the exporter lifecycle.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	file     *os.File
	enabled  bool
}

// NewTracerProvider installs a global tracer provider. Disabled tracing
// installs a no-op provider so callers never need to check.
func NewTracerProvider(cfg TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &TracerProvider{}, nil
	}
	if cfg.File == "" {
		return nil, fmt.Errorf("tracing file required when tracing is enabled")
	}
	path := filepath.Clean(cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from the site manifest
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	name := cfg.ServiceName
	if name == "" {
		name = "sitepack"
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider, file: f, enabled: true}, nil
}

// Enabled reports whether spans are exported.
func (tp *TracerProvider) Enabled() bool { return tp != nil && tp.enabled }

// Shutdown flushes pending spans and closes the trace file.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	err := tp.provider.Shutdown(ctx)
	if cerr := tp.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Tracer returns the process-wide tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartBuildSpan creates the root span of one build.
func StartBuildSpan(ctx context.Context, buildID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "build", trace.WithAttributes(attribute.String("build.id", buildID)))
}

// StartStageSpan creates a span for a build stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "stage."+stage, trace.WithAttributes(attribute.String("stage.name", stage)))
}

// StartFilterSpan creates a span for one filter invocation.
func StartFilterSpan(ctx context.Context, filter, output string, inputs int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "filter."+filter, trace.WithAttributes(
		attribute.String("filter.name", filter),
		attribute.String("filter.output", output),
		attribute.Int("filter.inputs", inputs),
	))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
