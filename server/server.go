package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/engine"
	"github.com/hupe1980/dialogmesh/logging"
)

const maxBodyBytes = 64 << 10

// Engine is the part of *engine.Engine the handlers use.
type Engine interface {
	HandleMessage(ctx context.Context, id, text string) (engine.Reply, error)
	Resume(ctx context.Context, id string) error
	Tracker(ctx context.Context, id string) (*core.Tracker, error)
	SessionTracker(ctx context.Context, id string) (*core.Tracker, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Handler serves the conversation endpoints.
type Handler struct {
	Engine Engine
	Logger logging.Logger
}

// NewRouter wires the handler into a mux.
func NewRouter(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /conversations/{id}/messages", handler.Messages)
	mux.HandleFunc("GET /conversations/{id}/tracker", handler.Tracker)
	mux.HandleFunc("POST /conversations/{id}/resume", handler.Resume)
	mux.HandleFunc("GET /health", handler.Health)

	return mux
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	ConversationID string   `json:"conversation_id"`
	Responses      []string `json:"responses"`
}

// Messages runs one turn.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	reply, err := h.Engine.HandleMessage(r.Context(), id, req.Text)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{ConversationID: id, Responses: reply.Responses})
}

type trackerResponse struct {
	ConversationID string         `json:"conversation_id"`
	Slots          map[string]any `json:"slots"`
	ActiveForm     string         `json:"active_form,omitempty"`
	Paused         bool           `json:"paused"`
	LatestAction   string         `json:"latest_action,omitempty"`
	Events         []core.Event   `json:"events"`
}

// Tracker returns the folded state and the event log. With ?session=true only
// the latest session is returned. Unknown conversations yield 404.
func (h *Handler) Tracker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	found, err := h.Engine.Exists(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation_not_found"})
		return
	}

	load := h.Engine.Tracker
	if session, _ := strconv.ParseBool(r.URL.Query().Get("session")); session {
		load = h.Engine.SessionTracker
	}

	tr, err := load(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	state := tr.State()
	writeJSON(w, http.StatusOK, trackerResponse{
		ConversationID: id,
		Slots:          state.Slots,
		ActiveForm:     state.ActiveForm,
		Paused:         state.Paused,
		LatestAction:   tr.LatestAction(),
		Events:         tr.Events(),
	})
}

// Resume lifts a pause.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.Engine.Resume(r.Context(), id); err != nil {
		h.writeError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": id, "status": "resumed"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, id string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ForConversation(logging.OrNoOp(h.Logger), id).Error("request failed", "status", status, "error", err)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": errorCode(err)})
}

// StatusFor maps turn errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrConversationBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTurnTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrPersistenceFailure), errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrConversationBusy):
		return "conversation_busy"
	case errors.Is(err, core.ErrTurnTimeout):
		return "turn_timeout"
	case errors.Is(err, core.ErrPersistenceFailure), errors.Is(err, core.ErrStoreUnavailable):
		return "persistence_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request_cancelled"
	default:
		return "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
