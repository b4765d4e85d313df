// Package handlers serves the game over HTTP. Every response body is JSON;
// failures are reported as ErrorResponse.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/doctrine-engine/internal/storage"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	store   storage.Store
	backend llm.Backend
	logger  *slog.Logger
}

func NewHealthHandler(store storage.Store, backend llm.Backend, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		backend: backend,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("LLM health check failed", "backend", h.backend.Name(), "error", err)
		components["llm"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["llm"] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "doctrine-engine",
		Components: components,
	})
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}
