package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/doctrine-engine/internal/config"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

func TestOpenAIService_Generate(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	svc := NewOpenAIService(server.URL, "sk-test", "gpt-4o-mini", 0.8, testLogger())
	text, err := svc.Generate(context.Background(), "judge this", true)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "judge this", got.Messages[0].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIService_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *llm.HTTPStatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, llm.IsMalformed(err))
			},
		},
		{
			name:   "refusal",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"refusal":"no"}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "refused")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOpenAIService(server.URL, "k", "m", 0.8, testLogger()).Generate(context.Background(), "p", false)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOpenAIService_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer server.Close()

	models, err := NewOpenAIService(server.URL, "good", "m", 0.8, testLogger()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)

	err = NewOpenAIService(server.URL, "bad", "m", 0.8, testLogger()).Ping(context.Background())
	var statusErr *llm.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestNewBackend(t *testing.T) {
	local, err := NewBackend(context.Background(), &config.Config{LLMProvider: config.ProviderLocal}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "local", local.Name())

	hosted, err := NewBackend(context.Background(), &config.Config{LLMProvider: config.ProviderHosted, LLMAPIKey: "k"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "hosted", hosted.Name())

	anthropic, err := NewBackend(context.Background(), &config.Config{LLMProvider: config.ProviderAnthropic, AnthropicAPIKey: "k"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropic.Name())

	_, err = NewBackend(context.Background(), &config.Config{LLMProvider: "nope"}, testLogger())
	assert.Error(t, err)
}

func TestNewGateway(t *testing.T) {
	mock := llm.NewMockBackend()
	mock.SetResponse("hello")
	g := NewGateway(&config.Config{MaxAttempts: 1}, mock, testLogger())

	text, err := g.Generate(context.Background(), "hi", false)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Len(t, mock.Calls(), 1)
}
