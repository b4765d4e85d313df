package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/doctrine-engine/internal/config"
)

// Setup builds the service logger on stdout and installs it as the slog default.
func Setup(cfg *config.Config) *slog.Logger {
	logger := New(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

// New returns a logger writing to w. Production gets JSON lines, every
// other environment gets text.
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithSession adds the session ID to logger context
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}
