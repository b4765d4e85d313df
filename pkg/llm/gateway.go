// Package llm is the gateway between game logic and a text-completion
// backend. It owns retry, backoff and per-attempt timeouts, and turns raw
// completions into typed values.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
	DefaultBaseDelay   = 1000 * time.Millisecond
)

// Generator is anything that turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// Backend is a concrete LLM provider.
type Backend interface {
	Generator

	// Name identifies the backend in logs and health output
	Name() string

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// ListModels returns the model names the backend can serve
	ListModels(ctx context.Context) ([]string, error)
}

// Gateway wraps a Backend with a fixed retry policy. It keeps no state
// between calls and is safe for concurrent use.
type Gateway struct {
	backend     Backend
	logger      *slog.Logger
	maxAttempts int
	timeout     time.Duration
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a gateway with the default policy: 3 attempts, 60s per
// attempt, backoff of 1s * 2^attempt.
func NewGateway(backend Backend, logger *slog.Logger) *Gateway {
	return &Gateway{
		backend:     backend,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		timeout:     DefaultTimeout,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepCtx,
	}
}

// WithMaxAttempts sets the number of attempts per request.
func (g *Gateway) WithMaxAttempts(n int) *Gateway {
	if n > 0 {
		g.maxAttempts = n
	}
	return g
}

// WithTimeout sets the wall-clock bound of a single attempt.
func (g *Gateway) WithTimeout(d time.Duration) *Gateway {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// WithBaseDelay sets the first backoff delay; later delays double it.
func (g *Gateway) WithBaseDelay(d time.Duration) *Gateway {
	if d >= 0 {
		g.baseDelay = d
	}
	return g
}

// Backend returns the wrapped backend.
func (g *Gateway) Backend() Backend {
	return g.backend
}

// Generate sends prompt to the backend, retrying transient failures. jsonMode
// asks the backend for structured JSON output.
func (g *Gateway) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.baseDelay * time.Duration(1<<(attempt-1))
			if err := g.sleep(ctx, delay); err != nil {
				return "", &GatewayError{Backend: g.backend.Name(), Attempts: attempt, Err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		start := time.Now()
		text, err := g.backend.Generate(attemptCtx, prompt, jsonMode)
		cancel()

		if err == nil {
			g.logger.Debug("LLM call succeeded",
				"backend", g.backend.Name(),
				"attempt", attempt+1,
				"json_mode", jsonMode,
				"duration", time.Since(start))
			return text, nil
		}

		lastErr = err
		g.logger.Warn("LLM call failed",
			"backend", g.backend.Name(),
			"attempt", attempt+1,
			"max_attempts", g.maxAttempts,
			"error", err)

		// The caller gave up; further attempts would fail the same way.
		if ctx.Err() != nil {
			return "", &GatewayError{Backend: g.backend.Name(), Attempts: attempt + 1, Err: ctx.Err()}
		}
		if !retryable(err) {
			return "", &GatewayError{Backend: g.backend.Name(), Attempts: attempt + 1, Err: err}
		}
	}
	return "", &GatewayError{Backend: g.backend.Name(), Attempts: g.maxAttempts, Err: lastErr}
}

// retryable reports whether another attempt could succeed: transport
// failures, HTTP status errors and attempt timeouts.
func retryable(err error) bool {
	var netErr *NetworkError
	var statusErr *HTTPStatusError
	return errors.As(err, &netErr) ||
		errors.As(err, &statusErr) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Ping checks backend connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.backend.Ping(ctx)
}

// ListModels lists the backend's models.
func (g *Gateway) ListModels(ctx context.Context) ([]string, error) {
	return g.backend.ListModels(ctx)
}

// GenerateJSON requests JSON output and decodes it into T. A parse failure is
// returned as a *MalformedResponseError; the text is never repaired here.
func GenerateJSON[T any](ctx context.Context, g Generator, prompt string) (T, error) {
	var out T
	text, err := g.Generate(ctx, prompt, true)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return out, &MalformedResponseError{Raw: text, Err: err}
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
