package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/doctrine-engine/pkg/llm"
)

type ModelsResponse struct {
	Backend string   `json:"backend"`
	Models  []string `json:"models"`
}

// ModelsHandler lists the models the configured backend can serve.
type ModelsHandler struct {
	backend llm.Backend
	logger  *slog.Logger
}

func NewModelsHandler(backend llm.Backend, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{backend: backend, logger: logger}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
		return
	}

	models, err := h.backend.ListModels(r.Context())
	if err != nil {
		h.logger.Warn("Failed to list models", "backend", h.backend.Name(), "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "Failed to list models: "+err.Error())
		return
	}
	if models == nil {
		models = []string{}
	}
	writeJSON(w, h.logger, http.StatusOK, ModelsResponse{Backend: h.backend.Name(), Models: models})
}
