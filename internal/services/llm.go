package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/doctrine-engine/internal/config"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

// NewBackend builds the LLM backend selected by configuration.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Backend, error) {
	switch cfg.LLMProvider {
	case config.ProviderLocal:
		return NewOllamaService(cfg.LocalLLMURL, cfg.ModelName, cfg.Temperature, logger), nil
	case config.ProviderHosted:
		return NewOpenAIService(cfg.HostedLLMURL, cfg.LLMAPIKey, cfg.ModelName, cfg.Temperature, logger), nil
	case config.ProviderGemini:
		return NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.ModelName, cfg.Temperature, logger)
	case config.ProviderAnthropic:
		return NewAnthropicService(cfg.AnthropicURL, cfg.AnthropicAPIKey, cfg.ModelName, cfg.Temperature, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// NewGateway wraps backend with the configured retry policy.
func NewGateway(cfg *config.Config, backend llm.Backend, logger *slog.Logger) *llm.Gateway {
	return llm.NewGateway(backend, logger).
		WithMaxAttempts(cfg.MaxAttempts).
		WithTimeout(cfg.RequestTimeout)
}
