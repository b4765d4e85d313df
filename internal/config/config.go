package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported LLM providers.
const (
	ProviderLocal     = "local"
	ProviderHosted    = "hosted"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Supported session stores.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string
	ModelName       string
	LocalLLMURL     string
	HostedLLMURL    string
	LLMAPIKey       string
	GeminiAPIKey    string
	AnthropicURL    string
	AnthropicAPIKey string
	Temperature     float64
	MaxAttempts     int
	RequestTimeout  time.Duration

	Storage    string
	RedisURL   string
	SessionTTL time.Duration

	PartyNames []string
}

// DefaultPartyNames names the party when the client does not.
var DefaultPartyNames = []string{"Aria", "Borin", "Cass"}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderLocal)),
		ModelName:       getEnv("MODEL_NAME", ""),
		LocalLLMURL:     strings.TrimRight(getEnv("LOCAL_LLM_URL", "http://localhost:11434"), "/"),
		HostedLLMURL:    strings.TrimRight(getEnv("HOSTED_LLM_URL", "https://api.openai.com/v1"), "/"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AnthropicURL:    strings.TrimRight(getEnv("ANTHROPIC_URL", "https://api.anthropic.com/v1"), "/"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		Storage:  strings.ToLower(getEnv("STORAGE", StorageMemory)),
		RedisURL: getEnv("REDIS_URL", ""),

		PartyNames: parseNames(getEnv("PARTY_NAMES", "")),
	}

	var err error
	if cfg.Temperature, err = strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.8"), 64); err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}
	if cfg.MaxAttempts, err = strconv.Atoi(getEnv("LLM_MAX_ATTEMPTS", "3")); err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_ATTEMPTS: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("LLM_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "2h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel(cfg.LLMProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations Load cannot catch field by field.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderLocal:
	case ProviderHosted:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=%s", ProviderHosted)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=%s", ProviderGemini)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=%s", ProviderAnthropic)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (supported: %s, %s, %s, %s)",
			c.LLMProvider, ProviderLocal, ProviderHosted, ProviderGemini, ProviderAnthropic)
	}

	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORAGE=%s", StorageRedis)
		}
	default:
		return fmt.Errorf("unsupported STORAGE %q", c.Storage)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderHosted:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	default:
		return "llama3.1"
	}
}

func parseNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultPartyNames...)
	}
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
