package focus

import "errors"

var (
	// ErrInvalidDuration is returned when a target is outside (0, MaxFocusMinutes].
	ErrInvalidDuration = errors.New("focus duration must be between 1 and 999 minutes")
	ErrSessionActive   = errors.New("focus session already active")
	ErrNoSession       = errors.New("no focus session")
)
