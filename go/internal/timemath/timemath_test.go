package timemath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/mcdev12/fokus/go/internal/models"
)

const t0 = int64(1_700_000_000_000)

func TestRemainingMs_Idle(t *testing.T) {
	timer := models.SharedTimer{Status: models.TimerStatusIdle, DurationMs: 60000}
	assert.Equal(t, int64(60000), RemainingMs(timer, t0))
}

func TestRemainingMs_Completed(t *testing.T) {
	timer := models.SharedTimer{Status: models.TimerStatusCompleted, DurationMs: 60000, StartedAt: models.Millis(t0)}
	assert.Equal(t, int64(60000), RemainingMs(timer, t0+90000))
}

func TestRemainingMs_Running(t *testing.T) {
	timer := models.SharedTimer{
		Status:           models.TimerStatusRunning,
		DurationMs:       60000,
		StartedAt:        models.Millis(t0),
		PausedDurationMs: 30000,
	}
	assert.Equal(t, int64(15000), RemainingMs(timer, t0+75000))
}

func TestRemainingMs_RunningClampsAtZero(t *testing.T) {
	timer := models.SharedTimer{Status: models.TimerStatusRunning, DurationMs: 1000, StartedAt: models.Millis(t0)}
	assert.Equal(t, int64(0), RemainingMs(timer, t0+5000))
}

func TestRemainingMs_PausedIsFrozen(t *testing.T) {
	timer := models.SharedTimer{
		Status:     models.TimerStatusPaused,
		DurationMs: 60000,
		StartedAt:  models.Millis(t0),
		PausedAt:   models.Millis(t0 + 20000),
	}
	assert.Equal(t, int64(40000), RemainingMs(timer, t0+21000))
	assert.Equal(t, int64(40000), RemainingMs(timer, t0+500000))
}

func TestRemainingMs_RunningWithoutStart(t *testing.T) {
	timer := models.SharedTimer{Status: models.TimerStatusRunning, DurationMs: 60000}
	assert.Equal(t, int64(60000), RemainingMs(timer, t0))
}

func TestRemainingMs_ClockSkewBeforeStart(t *testing.T) {
	// A client whose clock lags the writer sees a start in its future.
	timer := models.SharedTimer{Status: models.TimerStatusRunning, DurationMs: 60000, StartedAt: models.Millis(t0)}
	assert.Equal(t, int64(60000), RemainingMs(timer, t0-2000))
}

// Property: remaining time never leaves [0, DurationMs] and never grows as
// the observer's clock moves forward.
func TestRemainingMsBoundedAndMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		duration := rapid.Int64Range(0, 24*60*60*1000).Draw(t, "duration")
		paused := rapid.Int64Range(0, 60*60*1000).Draw(t, "paused")
		start := rapid.Int64Range(t0, t0+1_000_000).Draw(t, "start")
		a := rapid.Int64Range(t0, t0+48*60*60*1000).Draw(t, "a")
		b := rapid.Int64Range(a, a+60*60*1000).Draw(t, "b")

		timer := models.SharedTimer{
			Status:           models.TimerStatusRunning,
			DurationMs:       duration,
			StartedAt:        models.Millis(start),
			PausedDurationMs: paused,
		}

		ra := RemainingMs(timer, a)
		rb := RemainingMs(timer, b)
		if ra < 0 || ra > duration || rb < 0 || rb > duration {
			t.Fatalf("remaining out of range: %d, %d (duration %d)", ra, rb, duration)
		}
		if rb > ra {
			t.Fatalf("remaining grew from %d to %d", ra, rb)
		}
	})
}

func TestElapsedMinutes(t *testing.T) {
	assert.Equal(t, 0, ElapsedMinutes(1500, 1500))
	assert.Equal(t, 0, ElapsedMinutes(1500, 1441))
	assert.Equal(t, 1, ElapsedMinutes(1500, 1440))
	assert.Equal(t, 25, ElapsedMinutes(1500, 0))
	assert.Equal(t, 0, ElapsedMinutes(60, 90))
}

func TestPoints(t *testing.T) {
	assert.Equal(t, 0, Points(0, 5))
	assert.Equal(t, 50, Points(10, 5))
	assert.Equal(t, 0, Points(10, 0))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", FormatClock(0))
	assert.Equal(t, "0:01", FormatClock(100*time.Millisecond))
	assert.Equal(t, "1:05", FormatClock(65*time.Second))
	assert.Equal(t, "25:00", FormatClock(25*time.Minute))
	assert.Equal(t, "1:00:00", FormatClock(time.Hour))
	assert.Equal(t, "16:39:00", FormatClock(999*time.Minute))
	assert.Equal(t, "0:00", FormatClock(-time.Second))
}
