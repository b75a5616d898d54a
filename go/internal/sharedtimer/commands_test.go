package sharedtimer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcdev12/fokus/go/internal/models"
)

func idle(durationMs int64) models.SharedTimer {
	t := models.NewIdleTimer(now)
	t.DurationMs = durationMs
	return t
}

func TestNextState_SetDuration(t *testing.T) {
	next, err := nextState(CommandSetDuration, idle(0), now, 90000)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), next.DurationMs)
	assert.Equal(t, models.TimerStatusIdle, next.Status)

	_, err = nextState(CommandSetDuration, idle(0), now, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	running, err := nextState(CommandStart, idle(60000), now, 0)
	require.NoError(t, err)
	_, err = nextState(CommandSetDuration, running, now, 30000)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNextState_Start(t *testing.T) {
	_, err := nextState(CommandStart, idle(0), now, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "no duration")

	next, err := nextState(CommandStart, idle(60000), now, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusRunning, next.Status)
	require.NotNil(t, next.StartedAt)
	assert.Equal(t, now, *next.StartedAt)
	assert.Nil(t, next.PausedAt)
	assert.Zero(t, next.PausedDurationMs)

	_, err = nextState(CommandStart, next, now+10, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "already running")
}

func TestNextState_PauseResumeAccruesPausedTime(t *testing.T) {
	running, err := nextState(CommandStart, idle(60000), now, 0)
	require.NoError(t, err)

	paused, err := nextState(CommandPause, running, now+20000, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)
	assert.Equal(t, now+20000, *paused.PausedAt)
	assert.Zero(t, paused.PausedDurationMs)

	resumed, err := nextState(CommandResume, paused, now+50000, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusRunning, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Equal(t, int64(30000), resumed.PausedDurationMs)
	assert.Equal(t, *running.StartedAt, *resumed.StartedAt)

	// the input record is left alone
	assert.Equal(t, models.TimerStatusPaused, paused.Status)
	assert.NotNil(t, paused.PausedAt)
}

func TestNextState_IllegalTransitions(t *testing.T) {
	_, err := nextState(CommandPause, idle(60000), now, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = nextState(CommandResume, idle(60000), now, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = nextState(commandComplete, idle(60000), now, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = nextState(Command("rewind"), idle(60000), now, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNextState_Stop(t *testing.T) {
	next, err := nextState(CommandStop, idle(60000), now, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TimerStatusCompleted, next.Status)
}

// Reset from any state clears the run but keeps the duration.
func TestNextState_ResetFromAnyState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cur := models.SharedTimer{
			TimerID:          models.DefaultTimerID,
			DurationMs:       rapid.Int64Range(0, 10_000_000).Draw(t, "duration"),
			PausedDurationMs: rapid.Int64Range(0, 10_000_000).Draw(t, "pausedDuration"),
			Status: rapid.SampledFrom([]models.TimerStatus{
				models.TimerStatusIdle, models.TimerStatusRunning,
				models.TimerStatusPaused, models.TimerStatusCompleted,
			}).Draw(t, "status"),
		}
		if rapid.Bool().Draw(t, "started") {
			cur.StartedAt = models.Millis(rapid.Int64Range(1, now).Draw(t, "startedAt"))
		}
		if rapid.Bool().Draw(t, "pausedAt") {
			cur.PausedAt = models.Millis(rapid.Int64Range(1, now).Draw(t, "pausedAtMs"))
		}

		next, err := nextState(CommandReset, cur, now, 0)
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
		if next.Status != models.TimerStatusIdle || next.StartedAt != nil || next.PausedAt != nil || next.PausedDurationMs != 0 {
			t.Fatalf("reset left run state: %+v", next)
		}
		if next.DurationMs != cur.DurationMs {
			t.Fatalf("reset changed duration %d -> %d", cur.DurationMs, next.DurationMs)
		}
	})
}
