package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/internal/handlers"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

// apiClient talks to the doctrine-engine HTTP API.
type apiClient struct {
	client  *http.Client
	baseURL string
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends body (if non-nil) as JSON and decodes a response with the wanted
// status into out. Any other status is reported using the API's error body.
func (c *apiClient) call(method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func sessionPath(id uuid.UUID, action string) string {
	p := "/v1/sessions/" + id.String()
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *apiClient) createSession(names []string) (*state.GameState, error) {
	var gs state.GameState
	err := c.call(http.MethodPost, "/v1/sessions", handlers.CreateSessionRequest{Names: names}, http.StatusCreated, &gs)
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *apiClient) getSession(id uuid.UUID) (*state.GameState, error) {
	var gs state.GameState
	if err := c.call(http.MethodGet, sessionPath(id, ""), nil, http.StatusOK, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *apiClient) resetSession(id uuid.UUID) (*state.GameState, error) {
	var gs state.GameState
	if err := c.call(http.MethodPost, sessionPath(id, "reset"), nil, http.StatusOK, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *apiClient) nextEvent(id uuid.UUID) (*handlers.NextEventResponse, error) {
	var resp handlers.NextEventResponse
	if err := c.call(http.MethodPost, sessionPath(id, "events"), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) resolveEvent(id uuid.UUID, doctrine string) (*handlers.EventResolveResponse, error) {
	var resp handlers.EventResolveResponse
	err := c.call(http.MethodPost, sessionPath(id, "events/resolve"), handlers.DoctrineRequest{Doctrine: doctrine}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// combat plays one round, or the whole fight when toEnd is set.
func (c *apiClient) combat(id uuid.UUID, doctrine string, toEnd bool) (*handlers.CombatResponse, error) {
	action := "combat/round"
	if toEnd {
		action = "combat/run"
	}
	var resp handlers.CombatResponse
	err := c.call(http.MethodPost, sessionPath(id, action), handlers.DoctrineRequest{Doctrine: doctrine}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
