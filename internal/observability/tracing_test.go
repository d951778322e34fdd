package observability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestSpanHierarchy(t *testing.T) {
	rec := withRecorder(t)

	ctx, build := StartBuildSpan(context.Background(), "b-1")
	ctx, stage := StartStageSpan(ctx, "pack_assets")
	_, f := StartFilterSpan(ctx, "SCSS2CSS", "work/style/style.css", 1)
	EndSpan(f, errors.New("boom"))
	EndSpan(stage, nil)
	EndSpan(build, nil)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "filter.SCSS2CSS", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "stage.pack_assets", spans[1].Name())
	assert.Equal(t, "build", spans[2].Name())
	assert.Equal(t, spans[2].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestEndSpanNil(t *testing.T) {
	EndSpan(nil, errors.New("ignored"))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_EnabledRequiresFile(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Enabled: true})
	require.Error(t, err)
}

func TestNewTracerProvider_WritesSpansToFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "traces", "spans.json")
	tp, err := NewTracerProvider(TracingConfig{Enabled: true, File: path})
	require.NoError(t, err)
	assert.True(t, tp.Enabled())

	_, span := StartBuildSpan(context.Background(), "b-2")
	EndSpan(span, nil)
	require.NoError(t, tp.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"build"`)
	assert.Contains(t, string(data), "b-2")
}
