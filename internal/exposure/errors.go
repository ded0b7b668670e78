package exposure

import (
	"errors"
	"fmt"
)

// ErrGridMismatch is returned when the shaking and population grids cannot be
// reconciled by resampling.
var ErrGridMismatch = errors.New("exposure: grid mismatch")

// ComputationError wraps a lower-level numerical failure so that no opaque
// fault from grid handling crosses the engine boundary.
type ComputationError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("exposure: computation failed at %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ComputationError) Unwrap() error { return e.Err }

func computationErr(stage string, err error) error {
	return &ComputationError{Stage: stage, Err: err}
}
