package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiHandler_FansOutToAllHandlers(t *testing.T) {
	buf1 := &bytes.Buffer{}
	buf2 := &bytes.Buffer{}

	multi := NewMultiHandler(
		slog.NewTextHandler(buf1, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)

	slog.New(multi).Info("backfill batch processed", "type", 915)

	assert.Contains(t, buf1.String(), "backfill batch processed")
	assert.Contains(t, buf2.String(), `"type":915`)
}

func TestMultiHandler_RespectsPerHandlerLevels(t *testing.T) {
	debugBuf := &bytes.Buffer{}
	warnBuf := &bytes.Buffer{}

	multi := NewMultiHandler(
		slog.NewTextHandler(debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	logger := slog.New(multi)
	logger.Info("info message")
	logger.Warn("warn message")

	assert.Contains(t, debugBuf.String(), "info message")
	assert.Contains(t, debugBuf.String(), "warn message")
	assert.NotContains(t, warnBuf.String(), "info message")
	assert.Contains(t, warnBuf.String(), "warn message")
}

func TestMultiHandler_Enabled(t *testing.T) {
	multi := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	ctx := context.Background()
	assert.False(t, multi.Enabled(ctx, slog.LevelInfo))
	assert.True(t, multi.Enabled(ctx, slog.LevelWarn))
	assert.True(t, multi.Enabled(ctx, slog.LevelError))
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}

	multi := NewMultiHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "scheduler")}))

	logger.Info("scheduler started")

	assert.Contains(t, buf.String(), "component=scheduler")
}
