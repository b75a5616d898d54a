package sharedtimer

import "errors"

var (
	// ErrStoreUnavailable means no remote store is configured or reachable;
	// the reconciler stays inert.
	ErrStoreUnavailable = errors.New("timer store unavailable")
	// ErrWriteInFlight rejects a command issued while the previous one is
	// still pending. Callers retry.
	ErrWriteInFlight     = errors.New("timer update already in flight")
	ErrInvalidTransition = errors.New("command not allowed in current timer state")
	ErrInvalidDuration   = errors.New("timer duration must be positive")
)
