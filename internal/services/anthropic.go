package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

const (
	anthropicVersion = "2023-06-01"

	DefaultAnthropicMaxTokens = 2048

	anthropicJSONSystem = "Respond with a single JSON object and nothing else. No prose, no code fences."
)

// AnthropicService implements llm.Backend for the Anthropic Messages API.
type AnthropicService struct {
	baseURL     string
	apiKey      string
	modelName   string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ llm.Backend = (*AnthropicService)(nil)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewAnthropicService(baseURL, apiKey, modelName string, temperature float64, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		modelName:   modelName,
		temperature: temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

func (a *AnthropicService) Name() string { return "anthropic" }

// Generate sends prompt as a single user message. The Messages API has no
// JSON response mode, so jsonMode adds a system instruction instead.
func (a *AnthropicService) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	temperature := a.temperature
	anthropicReq := AnthropicRequest{
		Model:       a.modelName,
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: &temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	if jsonMode {
		anthropicReq.System = anthropicJSONSystem
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &llm.NetworkError{Op: "messages", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Anthropic returned error",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return "", &llm.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", &llm.MalformedResponseError{Raw: string(body), Err: err}
	}
	if anthropicResp.Error != nil {
		return "", fmt.Errorf("API error: %s", anthropicResp.Error.Message)
	}

	var text strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &llm.MalformedResponseError{Raw: string(body), Err: fmt.Errorf("no text content in response")}
	}
	return text.String(), nil
}

// Ping checks the key against the models endpoint.
func (a *AnthropicService) Ping(ctx context.Context) error {
	_, err := a.ListModels(ctx)
	return err
}

func (a *AnthropicService) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &llm.NetworkError{Op: "list models", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var models anthropicModelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	names := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (a *AnthropicService) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
}
