package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

// GeminiService implements llm.Backend with the Google GenAI SDK.
type GeminiService struct {
	client      *genai.Client
	modelName   string
	temperature float32
	logger      *slog.Logger
}

var _ llm.Backend = (*GeminiService)(nil)

// NewGeminiService creates a Gemini backend for the Gemini Developer API.
func NewGeminiService(ctx context.Context, apiKey, modelName string, temperature float64, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiService{
		client:      client,
		modelName:   modelName,
		temperature: float32(temperature),
		logger:      logger,
	}, nil
}

func (s *GeminiService) Name() string { return "gemini" }

// Generate sends prompt as a single user turn.
func (s *GeminiService) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.temperature),
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", convertGeminiError("generate content", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &llm.MalformedResponseError{Err: fmt.Errorf("empty response from gemini")}
	}
	return text, nil
}

// Ping fetches the configured model's metadata.
func (s *GeminiService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.modelName, nil); err != nil {
		return convertGeminiError("get model", err)
	}
	return nil
}

// ListModels returns the first page of available models.
func (s *GeminiService) ListModels(ctx context.Context) ([]string, error) {
	page, err := s.client.Models.List(ctx, nil)
	if err != nil {
		return nil, convertGeminiError("list models", err)
	}
	names := make([]string, 0, len(page.Items))
	for _, m := range page.Items {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

func convertGeminiError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.HTTPStatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return &llm.NetworkError{Op: op, Err: err}
}
