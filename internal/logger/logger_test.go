package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/doctrine-engine/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("production writes json", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, &config.Config{Environment: "production", LogLevel: slog.LevelInfo})
		l.Info("started", "port", "8080")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "started", line["msg"])
		assert.Equal(t, "8080", line["port"])
	})

	t.Run("development writes text and honours level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, &config.Config{Environment: "development", LogLevel: slog.LevelWarn})
		l.Info("hidden")
		l.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := Setup(&config.Config{LogLevel: slog.LevelDebug})
	assert.Same(t, l, slog.Default())
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	l := WithSession(slog.New(slog.NewTextHandler(&buf, nil)), "abc-123")
	l.Info("hello")
	assert.Contains(t, buf.String(), "session_id=abc-123")
}
