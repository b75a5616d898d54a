package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/sharedtimer"
)

// TimerController is the part of the shared timer reconciler the gateway
// drives.
type TimerController interface {
	Snapshot() sharedtimer.Snapshot
	Do(ctx context.Context, cmd sharedtimer.Command, durationMs int64) error
}

// timerCommands maps URL segments to reconciler commands.
var timerCommands = map[string]sharedtimer.Command{
	"duration": sharedtimer.CommandSetDuration,
	"start":    sharedtimer.CommandStart,
	"pause":    sharedtimer.CommandPause,
	"resume":   sharedtimer.CommandResume,
	"reset":    sharedtimer.CommandReset,
	"stop":     sharedtimer.CommandStop,
}

// TimerHandler serves the shared timer REST endpoints
type TimerHandler struct {
	timer TimerController
}

func NewTimerHandler(timer TimerController) *TimerHandler {
	return &TimerHandler{timer: timer}
}

// maxTimerMinutes bounds the minutes form so the conversion cannot overflow.
const maxTimerMinutes = 999 * 60

type durationRequest struct {
	DurationMs int64 `json:"durationMs"`
	Minutes    int64 `json:"minutes"`
}

// HandleGetState handles GET /api/timer/state
func (h *TimerHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.timer.Snapshot())
}

// HandleCommand handles POST /api/timer/{command}. It answers with the
// snapshot after the optimistic apply.
func (h *TimerHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")
	cmd, ok := timerCommands[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	var durationMs int64
	if cmd == sharedtimer.CommandSetDuration {
		var req durationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		durationMs = req.DurationMs
		if durationMs == 0 {
			if req.Minutes < 0 || req.Minutes > maxTimerMinutes {
				writeError(w, http.StatusBadRequest,
					fmt.Errorf("%w: minutes must be at most %d, got %d", sharedtimer.ErrInvalidDuration, maxTimerMinutes, req.Minutes))
				return
			}
			durationMs = req.Minutes * int64(time.Minute/time.Millisecond)
		}
	}

	if err := h.timer.Do(r.Context(), cmd, durationMs); err != nil {
		status := timerErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("command", string(cmd)).Msg("shared timer command failed")
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, h.timer.Snapshot())
}

func timerErrorStatus(err error) int {
	switch {
	case errors.Is(err, sharedtimer.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, sharedtimer.ErrInvalidTransition), errors.Is(err, sharedtimer.ErrWriteInFlight):
		return http.StatusConflict
	case errors.Is(err, sharedtimer.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *TimerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/timer/state", h.HandleGetState)
	mux.HandleFunc("POST /api/timer/{command}", h.HandleCommand)
}
