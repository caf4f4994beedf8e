package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanoutHandler(t *testing.T) {
	var info, debug bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(newFanoutHandler(level,
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With("conn_id", "c1").WithGroup("req")

	logger.Debug("HIDDEN")
	logger.Info("STREAM_OPENED", "tags", 2)

	assert.NotContains(t, debug.String(), "HIDDEN", "the shared level gates every handler")
	for _, out := range []string{info.String(), debug.String()} {
		assert.Contains(t, out, "STREAM_OPENED")
		assert.Contains(t, out, "conn_id=c1")
		assert.Contains(t, out, "req.tags=2")
	}

	level.Set(slog.LevelDebug)
	logger.Debug("VISIBLE")
	assert.Contains(t, debug.String(), "VISIBLE")
	assert.NotContains(t, info.String(), "VISIBLE")
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}
