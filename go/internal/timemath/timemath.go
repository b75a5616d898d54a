// Package timemath holds the countdown arithmetic shared by the focus engine
// and the shared timer reconciler.
package timemath

import (
	"fmt"
	"time"

	"github.com/mcdev12/fokus/go/internal/models"
)

// ElapsedMs returns the running time of t as observed at nowMs. While paused
// the observation point is frozen at PausedAt. Idle and completed timers, and
// timers that were never started, report zero.
func ElapsedMs(t models.SharedTimer, nowMs int64) int64 {
	if t.StartedAt == nil {
		return 0
	}

	var at int64
	switch t.Status {
	case models.TimerStatusRunning:
		at = nowMs
	case models.TimerStatusPaused:
		if t.PausedAt == nil {
			return 0
		}
		at = *t.PausedAt
	default:
		return 0
	}

	elapsed := at - *t.StartedAt - t.PausedDurationMs
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingMs projects the time left on t at nowMs, clamped to [0, DurationMs].
func RemainingMs(t models.SharedTimer, nowMs int64) int64 {
	switch t.Status {
	case models.TimerStatusRunning, models.TimerStatusPaused:
		if t.StartedAt == nil {
			return t.DurationMs
		}
		remaining := t.DurationMs - ElapsedMs(t, nowMs)
		if remaining < 0 {
			return 0
		}
		return remaining
	default:
		return t.DurationMs
	}
}

// ElapsedMinutes returns the whole minutes a countdown of targetSeconds has
// covered once remainingSeconds are left.
func ElapsedMinutes(targetSeconds, remainingSeconds int) int {
	elapsed := targetSeconds - remainingSeconds
	if elapsed <= 0 {
		return 0
	}
	return elapsed / 60
}

// Points converts whole focus minutes to reward points.
func Points(elapsedMinutes, pointsPerMinute int) int {
	if elapsedMinutes <= 0 || pointsPerMinute <= 0 {
		return 0
	}
	return elapsedMinutes * pointsPerMinute
}

// FormatClock renders d as m:ss, or h:mm:ss once it reaches an hour.
// Sub-second remainders are rounded up so a countdown shows 0:01 until it
// actually reaches zero.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
