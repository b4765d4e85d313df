package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/doctrine-engine/internal/logger"
	"github.com/jwebster45206/doctrine-engine/internal/storage"
	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/engine"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/llm"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

// CreateSessionRequest is the body of POST /v1/sessions. Names defaults to
// the configured party.
type CreateSessionRequest struct {
	Names []string `json:"names,omitempty"`
}

// DoctrineRequest carries the player's standing orders.
type DoctrineRequest struct {
	Doctrine string `json:"doctrine"`
}

// NextEventResponse is the body of POST /v1/sessions/{id}/events.
type NextEventResponse struct {
	Event     *events.GeneratedEvent `json:"event"`
	Encounter *combat.Encounter      `json:"encounter,omitempty"`
	Session   *state.GameState       `json:"session"`
}

// EventResolveResponse is the body of POST /v1/sessions/{id}/events/resolve.
type EventResolveResponse struct {
	Report  *engine.EventReport `json:"report"`
	Session *state.GameState    `json:"session"`
}

// CombatResponse is the body of the combat endpoints.
type CombatResponse struct {
	Result  *engine.CombatResult `json:"result"`
	Session *state.GameState     `json:"session"`
}

// SessionHandler serves every /v1/sessions route. Requests for the same
// session are serialized; different sessions proceed in parallel.
type SessionHandler struct {
	engine       *engine.Engine
	store        storage.Store
	backend      llm.Backend
	defaultNames []string
	logger       *slog.Logger
	pingTimeout  time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// DefaultPingTimeout bounds the backend health check made before a session
// is created.
const DefaultPingTimeout = 5 * time.Second

func NewSessionHandler(eng *engine.Engine, store storage.Store, backend llm.Backend, defaultNames []string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		engine:       eng,
		store:        store,
		backend:      backend,
		defaultNames: defaultNames,
		logger:       logger,
		pingTimeout:  DefaultPingTimeout,
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

// ServeHTTP routes:
// POST   /v1/sessions                       - Create a session
// GET    /v1/sessions/{id}                  - Read a session
// DELETE /v1/sessions/{id}                  - Delete a session
// POST   /v1/sessions/{id}/reset            - Re-roll the party
// POST   /v1/sessions/{id}/events           - Generate the next event
// POST   /v1/sessions/{id}/events/resolve   - Resolve a normal event
// POST   /v1/sessions/{id}/combat/round     - Play one combat round
// POST   /v1/sessions/{id}/combat/run       - Play combat to the end
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	idStr, action, _ := strings.Cut(path, "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	unlock := h.lock(id)
	defer unlock()

	log := logger.WithSession(h.logger, id.String())

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleRead(w, r, id, log)
	case action == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id, log)
	case action == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, id, log)
	case action == "events" && r.Method == http.MethodPost:
		h.handleNextEvent(w, r, id, log)
	case action == "events/resolve" && r.Method == http.MethodPost:
		h.handleResolve(w, r, id, log)
	case (action == "combat/round" || action == "combat/run") && r.Method == http.MethodPost:
		h.handleCombat(w, r, id, action == "combat/run", log)
	case action == "" || action == "reset" || action == "events" || action == "events/resolve" ||
		action == "combat/round" || action == "combat/run":
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
	}
}

// lock takes the per-session mutex and returns its release.
func (h *SessionHandler) lock(id uuid.UUID) func() {
	h.mu.Lock()
	m, ok := h.locks[id]
	if !ok {
		m = &sync.Mutex{}
		h.locks[id] = m
	}
	h.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	names := req.Names
	if len(names) == 0 {
		names = h.defaultNames
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	err := h.backend.Ping(pingCtx)
	cancel()
	if err != nil {
		h.logger.Error("LLM backend unreachable", "backend", h.backend.Name(), "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable,
			"Cannot reach the language model backend ("+h.backend.Name()+"). Check that it is running and configured.")
		return
	}

	gs, err := h.engine.NewGame(r.Context(), names)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if !h.save(w, r, gs) {
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, gs)
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	gs, ok := h.load(w, r, id, log)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		log.Error("Failed to delete session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	log.Info("Session deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleReset(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	gs, ok := h.load(w, r, id, log)
	if !ok {
		return
	}
	if err := h.engine.ResetGame(r.Context(), gs); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if !h.save(w, r, gs) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleNextEvent(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	gs, ok := h.load(w, r, id, log)
	if !ok {
		return
	}
	ev, err := h.engine.NextEvent(r.Context(), gs)
	if err != nil {
		h.writeEngineError(w, err, log)
		return
	}
	if !h.save(w, r, gs) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, NextEventResponse{Event: ev, Encounter: gs.Encounter, Session: gs})
}

func (h *SessionHandler) handleResolve(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	var req DoctrineRequest
	if !h.decode(w, r, &req) {
		return
	}
	gs, ok := h.load(w, r, id, log)
	if !ok {
		return
	}
	report, err := h.engine.ResolveEvent(r.Context(), gs, req.Doctrine)
	if err != nil {
		h.writeEngineError(w, err, log)
		return
	}
	if !h.save(w, r, gs) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, EventResolveResponse{Report: report, Session: gs})
}

func (h *SessionHandler) handleCombat(w http.ResponseWriter, r *http.Request, id uuid.UUID, toEnd bool, log *slog.Logger) {
	var req DoctrineRequest
	if !h.decode(w, r, &req) {
		return
	}
	gs, ok := h.load(w, r, id, log)
	if !ok {
		return
	}

	var (
		result *engine.CombatResult
		err    error
	)
	if toEnd {
		result, err = h.engine.RunCombat(r.Context(), gs, req.Doctrine)
	} else {
		result, err = h.engine.CombatRound(r.Context(), gs, req.Doctrine)
	}
	if err != nil {
		h.writeEngineError(w, err, log)
		return
	}
	if !h.save(w, r, gs) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, CombatResponse{Result: result, Session: gs})
}

// decode reads an optional JSON body into v. An empty body leaves v zero.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.logger.Warn("Invalid JSON in request body", "error", err)
	writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
	return false
}

func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) (*state.GameState, bool) {
	gs, err := h.store.Load(r.Context(), id)
	if err != nil {
		log.Error("Failed to load session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return nil, false
	}
	if gs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return gs, true
}

func (h *SessionHandler) save(w http.ResponseWriter, r *http.Request, gs *state.GameState) bool {
	gs.Touch()
	if err := h.store.Save(r.Context(), gs); err != nil {
		h.logger.Error("Failed to save session", "session_id", gs.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return false
	}
	return true
}

func (h *SessionHandler) writeEngineError(w http.ResponseWriter, err error, log *slog.Logger) {
	switch {
	case errors.Is(err, engine.ErrGameOver),
		errors.Is(err, engine.ErrEventPending),
		errors.Is(err, engine.ErrNoPendingEvent),
		errors.Is(err, engine.ErrWrongEventType):
		log.Warn("Request rejected", "error", err)
		writeError(w, h.logger, http.StatusConflict, err.Error())
	default:
		log.Error("Engine failure", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
	}
}
