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

// OpenAIService implements llm.Backend for any OpenAI-compatible hosted
// chat-completions API.
type OpenAIService struct {
	baseURL     string
	apiKey      string
	modelName   string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ llm.Backend = (*OpenAIService)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionRequest is the request body for /chat/completions
type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatCompletionResponse is the subset of the response we read
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIService creates a hosted chat-completions backend.
func NewOpenAIService(baseURL, apiKey, modelName string, temperature float64, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		baseURL:     baseURL,
		apiKey:      apiKey,
		modelName:   modelName,
		temperature: temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

func (c *OpenAIService) Name() string { return "hosted" }

// Generate sends prompt as a single user message.
func (c *OpenAIService) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	request := chatCompletionRequest{
		Model:       c.modelName,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	if jsonMode {
		request.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &llm.NetworkError{Op: "chat completion", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Hosted LLM returned error",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return "", &llm.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &llm.MalformedResponseError{Raw: string(body), Err: err}
	}
	if completion.Error != nil {
		return "", fmt.Errorf("API error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", &llm.MalformedResponseError{Raw: string(body), Err: fmt.Errorf("no choices returned from API")}
	}

	msg := completion.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("model refused to respond: %s", msg.Refusal)
	}
	return msg.Content, nil
}

// Ping checks the /models endpoint with the configured key.
func (c *OpenAIService) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

// ListModels retrieves available model IDs.
func (c *OpenAIService) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.NetworkError{Op: "list models", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if models.Error != nil {
		return nil, fmt.Errorf("API error: %s", models.Error.Message)
	}

	names := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (c *OpenAIService) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
