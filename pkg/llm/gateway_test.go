package llm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordSleeps swaps the gateway's sleeper for one that records delays.
func recordSleeps(g *Gateway) *[]time.Duration {
	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return &delays
}

func TestGateway_RetriesUntilSuccess(t *testing.T) {
	mock := NewMockBackend()
	var calls int32
	mock.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return "", &NetworkError{Op: "generate", Err: errors.New("connection refused")}
		}
		return "ok", nil
	}

	g := NewGateway(mock, testLogger())
	delays := recordSleeps(g)

	text, err := g.Generate(context.Background(), "hello", false)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Len(t, mock.Calls(), 3)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, *delays)
}

func TestGateway_ExhaustsAttempts(t *testing.T) {
	mock := NewMockBackend()
	lastErr := &HTTPStatusError{StatusCode: 503, Body: "overloaded"}
	mock.SetGenerateError(lastErr)

	g := NewGateway(mock, testLogger()).WithMaxAttempts(3)
	recordSleeps(g)

	_, err := g.Generate(context.Background(), "hello", true)
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 3, gwErr.Attempts)
	assert.Equal(t, "mock", gwErr.Backend)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.StatusCode)
	assert.Len(t, mock.Calls(), 3)
	assert.True(t, mock.Calls()[0].JSONMode)
}

func TestGateway_PerAttemptTimeout(t *testing.T) {
	mock := NewMockBackend()
	mock.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		<-ctx.Done()
		return "", &NetworkError{Op: "generate", Err: ctx.Err()}
	}

	g := NewGateway(mock, testLogger()).WithMaxAttempts(2).WithTimeout(10 * time.Millisecond)
	recordSleeps(g)

	_, err := g.Generate(context.Background(), "slow", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, mock.Calls(), 2)
}

func TestGateway_StopsWhenCallerCancels(t *testing.T) {
	mock := NewMockBackend()
	ctx, cancel := context.WithCancel(context.Background())
	mock.GenerateFunc = func(c context.Context, prompt string, jsonMode bool) (string, error) {
		cancel()
		return "", &NetworkError{Op: "generate", Err: errors.New("boom")}
	}

	g := NewGateway(mock, testLogger())
	recordSleeps(g)

	_, err := g.Generate(ctx, "hello", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mock.Calls(), 1)
}

func TestGateway_DoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"malformed envelope", &MalformedResponseError{Raw: "<html>", Err: errors.New("bad envelope")}},
		{"refusal", errors.New("API error: content refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockBackend()
			mock.SetGenerateError(tt.err)

			g := NewGateway(mock, testLogger())
			delays := recordSleeps(g)

			_, err := g.Generate(context.Background(), "hello", true)
			var gwErr *GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, 1, gwErr.Attempts)
			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, mock.Calls(), 1)
			assert.Empty(t, *delays)
		})
	}
}

func TestGateway_RetriesBareAttemptTimeout(t *testing.T) {
	mock := NewMockBackend()
	var calls int32
	mock.GenerateFunc = func(ctx context.Context, prompt string, jsonMode bool) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "late", nil
	}

	g := NewGateway(mock, testLogger()).WithTimeout(10 * time.Millisecond)
	recordSleeps(g)

	text, err := g.Generate(context.Background(), "slow", false)
	require.NoError(t, err)
	assert.Equal(t, "late", text)
	assert.Len(t, mock.Calls(), 2)
}

func TestGenerateJSON(t *testing.T) {
	type shape struct {
		Action string `json:"action"`
	}

	t.Run("decodes JSON", func(t *testing.T) {
		mock := NewMockBackend()
		mock.SetResponse(` {"action":"defend"} `)

		got, err := GenerateJSON[shape](context.Background(), mock, "p")
		require.NoError(t, err)
		assert.Equal(t, "defend", got.Action)
		assert.True(t, mock.Calls()[0].JSONMode)
	})

	t.Run("malformed text is not repaired", func(t *testing.T) {
		mock := NewMockBackend()
		mock.SetResponse("Sure! Here is the JSON: {\"action\":")

		_, err := GenerateJSON[shape](context.Background(), mock, "p")
		require.Error(t, err)
		assert.True(t, IsMalformed(err))

		var m *MalformedResponseError
		require.ErrorAs(t, err, &m)
		assert.Contains(t, m.Raw, "Here is the JSON")
	})

	t.Run("gateway failures pass through", func(t *testing.T) {
		mock := NewMockBackend()
		mock.SetGenerateError(&NetworkError{Op: "generate", Err: errors.New("down")})
		g := NewGateway(mock, testLogger()).WithMaxAttempts(1)

		_, err := GenerateJSON[shape](context.Background(), g, "p")
		var gwErr *GatewayError
		assert.ErrorAs(t, err, &gwErr)
		assert.False(t, IsMalformed(err))
	})
}
