package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/focus"
	"github.com/mcdev12/fokus/go/internal/models"
)

var errClientIDRequired = errors.New("client_id is required")

// FocusHandler serves the per-client focus session endpoints. Every request
// names its client with the client_id query parameter. Only start creates an
// engine; the other endpoints answer for an idle client without one.
type FocusHandler struct {
	manager *focus.Manager
}

func NewFocusHandler(manager *focus.Manager) *FocusHandler {
	return &FocusHandler{manager: manager}
}

type startFocusRequest struct {
	Minutes int     `json:"minutes"`
	TaskID  *string `json:"task_id,omitempty"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type visibilityResponse struct {
	State     focus.State `json:"state"`
	Penalized bool        `json:"penalized"`
}

type stopFocusResponse struct {
	Session *models.FocusSession `json:"session"`
	State   focus.State          `json:"state"`
}

func clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("client_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errClientIDRequired)
		return "", false
	}
	return id, true
}

// idleState is reported for clients without a session.
func idleState() focus.State {
	return focus.State{IsVisible: true}
}

// HandleGetState handles GET /api/focus/state
func (h *FocusHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}
	e, ok := h.manager.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusOK, idleState())
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

// HandleStart handles POST /api/focus/start
func (h *FocusHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	var req startFocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	e, err := h.manager.Start(r.Context(), id, req.Minutes, req.TaskID)
	if err != nil {
		writeError(w, focusErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

// HandlePause handles POST /api/focus/pause
func (h *FocusHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}
	e, ok := h.manager.Lookup(id)
	if !ok || !e.Pause() {
		writeError(w, http.StatusConflict, errors.New("no running focus session to pause"))
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

// HandleResume handles POST /api/focus/resume
func (h *FocusHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}
	e, ok := h.manager.Lookup(id)
	if !ok || !e.Resume() {
		writeError(w, http.StatusConflict, errors.New("no paused focus session to resume"))
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

// HandleStop handles POST /api/focus/stop
func (h *FocusHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}
	e, ok := h.manager.Lookup(id)
	if !ok {
		writeError(w, http.StatusConflict, focus.ErrNoSession)
		return
	}

	session, err := e.Stop(r.Context())
	// the engine is idle after Stop even when saving failed
	h.manager.Release(id)
	if err != nil {
		status := focusErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("failed to stop focus session")
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, stopFocusResponse{Session: session, State: e.State()})
}

// HandleReset handles POST /api/focus/reset
func (h *FocusHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}
	e, ok := h.manager.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusOK, idleState())
		return
	}
	e.Reset()
	h.manager.Release(id)
	writeJSON(w, http.StatusOK, e.State())
}

// HandleVisibility handles POST /api/focus/visibility. Without a session
// there is nothing to penalize and nothing is stored.
func (h *FocusHandler) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	e, ok := h.manager.Lookup(id)
	if !ok {
		state := idleState()
		state.IsVisible = req.Visible
		writeJSON(w, http.StatusOK, visibilityResponse{State: state})
		return
	}

	penalized := e.SetVisibility(req.Visible)
	writeJSON(w, http.StatusOK, visibilityResponse{State: e.State(), Penalized: penalized})
}

func focusErrorStatus(err error) int {
	switch {
	case errors.Is(err, focus.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, focus.ErrSessionActive), errors.Is(err, focus.ErrNoSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *FocusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/focus/state", h.HandleGetState)
	mux.HandleFunc("POST /api/focus/start", h.HandleStart)
	mux.HandleFunc("POST /api/focus/pause", h.HandlePause)
	mux.HandleFunc("POST /api/focus/resume", h.HandleResume)
	mux.HandleFunc("POST /api/focus/stop", h.HandleStop)
	mux.HandleFunc("POST /api/focus/reset", h.HandleReset)
	mux.HandleFunc("POST /api/focus/visibility", h.HandleVisibility)
}
