package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogContextAccumulates(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-123")
	ctx = WithStage(ctx, "pack_assets")
	ctx = WithAsset(ctx, "style")

	assert.Equal(t, LogContext{BuildID: "build-123", Stage: "pack_assets", Asset: "style"}, GetContext(ctx))
	assert.Equal(t, LogContext{}, GetContext(context.Background()))
}

func TestInfoContextAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithStage(WithBuildID(context.Background(), "b-9"), "copy_files")
	InfoContext(ctx, "copied", slog.Int("count", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "b-9", rec["build_id"])
	assert.Equal(t, "copy_files", rec["stage"])
	assert.InDelta(t, 3, rec["count"], 0)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	lg, err := NewLogger(&buf, "json", slog.LevelInfo)
	require.NoError(t, err)
	lg.Debug("hidden")
	lg.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "xml", slog.LevelInfo)
	require.Error(t, err)
}
