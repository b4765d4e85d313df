package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

// OllamaService implements llm.Backend against a local Ollama-compatible
// completion server.
type OllamaService struct {
	baseURL     string
	modelName   string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ llm.Backend = (*OllamaService)(nil)

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaService creates a new local completion backend. Attempt timeouts
// come from the caller's context, so the HTTP client has none of its own.
func NewOllamaService(baseURL string, modelName string, temperature float64, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		baseURL:     baseURL,
		modelName:   modelName,
		temperature: temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

func (s *OllamaService) Name() string { return "local" }

// Generate calls /api/generate without streaming.
func (s *OllamaService) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:   s.modelName,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: s.temperature},
	}
	if jsonMode {
		reqBody.Format = "json"
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/api/generate"
	s.logger.Debug("Making local generate request",
		"url", url,
		"model", s.modelName,
		"json_mode", jsonMode,
		"prompt_length", len(prompt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &llm.NetworkError{Op: "generate", Err: err}
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("Local LLM returned error",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return "", &llm.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", &llm.MalformedResponseError{Raw: string(body), Err: err}
	}
	return genResp.Response, nil
}

// Ping checks /api/tags.
func (s *OllamaService) Ping(ctx context.Context) error {
	_, err := s.tags(ctx)
	return err
}

// ListModels returns the names reported by /api/tags.
func (s *OllamaService) ListModels(ctx context.Context) ([]string, error) {
	tags, err := s.tags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (s *OllamaService) tags(ctx context.Context) (*ollamaTagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &llm.NetworkError{Op: "list models", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.HTTPStatusError{StatusCode: resp.StatusCode}
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &tagsResp, nil
}
