package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for timer watchers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	timer             TimerController
	clock             clockwork.Clock
}

func NewWebSocketHandler(cm *ConnectionManager, timer TimerController, clock clockwork.Clock) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		timer:             timer,
		clock:             clock,
	}
}

// HandleTimerConnection upgrades the request and sends the current timer
// state before any later update.
func (h *WebSocketHandler) HandleTimerConnection(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	initial, err := timerStateEvent(h.timer.Snapshot(), h.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build initial timer state")
		http.Error(w, "failed to build timer state", http.StatusInternalServerError)
		return
	}

	// Upgrade has already written an error response on failure.
	if _, err := h.connectionManager.UpgradeConnection(w, r, clientID, initial); err != nil {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/timer", h.HandleTimerConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
