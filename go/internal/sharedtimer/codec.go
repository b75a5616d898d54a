package sharedtimer

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/fokus/go/internal/models"
)

// wireTimer mirrors the stored JSON with every field optional, so missing
// and zero values can be told apart from real ones.
type wireTimer struct {
	TimerID        *string `json:"timerId"`
	DurationMs     *int64  `json:"durationMs"`
	StartedAt      *int64  `json:"startedAt"`
	PausedAt       *int64  `json:"pausedAt"`
	PausedDuration *int64  `json:"pausedDuration"`
	Status         *string `json:"status"`
	UpdatedBy      string  `json:"updatedBy"`
	LastUpdated    *int64  `json:"lastUpdated"`
}

// Decode turns a stored record into a timer. An empty record is a fresh idle
// timer. A malformed one also yields the idle timer, along with an error the
// caller may log; it is never fatal.
func Decode(data []byte, nowMs int64) (models.SharedTimer, error) {
	if len(data) == 0 {
		return models.NewIdleTimer(nowMs), nil
	}

	var w wireTimer
	if err := json.Unmarshal(data, &w); err != nil {
		return models.NewIdleTimer(nowMs), fmt.Errorf("decode shared timer: %w", err)
	}

	t := models.SharedTimer{
		TimerID:     models.DefaultTimerID,
		Status:      models.TimerStatusIdle,
		UpdatedBy:   w.UpdatedBy,
		LastUpdated: nowMs,
	}
	if w.TimerID != nil && *w.TimerID != "" {
		t.TimerID = *w.TimerID
	}
	if w.DurationMs != nil && *w.DurationMs > 0 {
		t.DurationMs = *w.DurationMs
	}
	if w.StartedAt != nil && *w.StartedAt != 0 {
		t.StartedAt = models.Millis(*w.StartedAt)
	}
	if w.PausedAt != nil && *w.PausedAt != 0 {
		t.PausedAt = models.Millis(*w.PausedAt)
	}
	if w.PausedDuration != nil && *w.PausedDuration > 0 {
		t.PausedDurationMs = *w.PausedDuration
	}
	if w.Status != nil {
		if s := models.TimerStatus(*w.Status); s.Valid() {
			t.Status = s
		} else if *w.Status != "" {
			return models.NewIdleTimer(nowMs), fmt.Errorf("decode shared timer: unknown status %q", *w.Status)
		}
	}
	if w.LastUpdated != nil && *w.LastUpdated != 0 {
		t.LastUpdated = *w.LastUpdated
	}
	return t, nil
}

// Encode renders t in the stored JSON form.
func Encode(t models.SharedTimer) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode shared timer: %w", err)
	}
	return data, nil
}
