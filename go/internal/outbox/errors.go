package outbox

import "errors"

var (
	ErrEventNotFound = errors.New("outbox event not found or already sent")
	ErrEmptyPayload  = errors.New("event payload cannot be empty")
)
