package alerting

import "errors"

var (
	// ErrInvalidRule indicates an alerting rule expression that cannot be parsed.
	ErrInvalidRule = errors.New("alerting: invalid rule expression")
	// ErrNotFound indicates a missing subscriber.
	ErrNotFound = errors.New("alerting: subscriber not found")
)
