package sharedtimer

import (
	"fmt"

	"github.com/mcdev12/fokus/go/internal/models"
)

// Command names a user intent against the shared timer.
type Command string

const (
	CommandSetDuration Command = "set_duration"
	CommandStart       Command = "start"
	CommandPause       Command = "pause"
	CommandResume      Command = "resume"
	CommandReset       Command = "reset"
	CommandStop        Command = "stop"
	commandComplete    Command = "complete"
)

// nextState derives the full record that results from applying cmd to cur
// at nowMs. cur is not modified. durationMs is only read by
// CommandSetDuration.
func nextState(cmd Command, cur models.SharedTimer, nowMs, durationMs int64) (models.SharedTimer, error) {
	next := cur.Clone()

	switch cmd {
	case CommandSetDuration:
		if durationMs <= 0 {
			return cur, fmt.Errorf("%w: got %dms", ErrInvalidDuration, durationMs)
		}
		if cur.Status == models.TimerStatusRunning {
			return cur, fmt.Errorf("%w: cannot change duration while running", ErrInvalidTransition)
		}
		next.Status = models.TimerStatusIdle
		next.DurationMs = durationMs

	case CommandStart:
		if cur.DurationMs <= 0 {
			return cur, fmt.Errorf("%w: no duration set", ErrInvalidTransition)
		}
		if cur.Status == models.TimerStatusRunning {
			return cur, fmt.Errorf("%w: already running", ErrInvalidTransition)
		}
		next.Status = models.TimerStatusRunning
		next.StartedAt = models.Millis(nowMs)
		next.PausedAt = nil
		next.PausedDurationMs = 0

	case CommandPause:
		if cur.Status != models.TimerStatusRunning {
			return cur, fmt.Errorf("%w: pause requires a running timer", ErrInvalidTransition)
		}
		next.Status = models.TimerStatusPaused
		next.PausedAt = models.Millis(nowMs)

	case CommandResume:
		if cur.Status != models.TimerStatusPaused {
			return cur, fmt.Errorf("%w: resume requires a paused timer", ErrInvalidTransition)
		}
		if cur.PausedAt != nil && nowMs > *cur.PausedAt {
			next.PausedDurationMs += nowMs - *cur.PausedAt
		}
		next.Status = models.TimerStatusRunning
		next.PausedAt = nil

	case CommandReset:
		next.Status = models.TimerStatusIdle
		next.StartedAt = nil
		next.PausedAt = nil
		next.PausedDurationMs = 0

	case CommandStop:
		next.Status = models.TimerStatusCompleted

	case commandComplete:
		if cur.Status != models.TimerStatusRunning {
			return cur, fmt.Errorf("%w: only a running timer completes", ErrInvalidTransition)
		}
		next.Status = models.TimerStatusCompleted

	default:
		return cur, fmt.Errorf("%w: unknown command %q", ErrInvalidTransition, cmd)
	}

	return next, nil
}
