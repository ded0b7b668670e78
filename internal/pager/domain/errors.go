package pager

import "errors"

var (
	// ErrNotFound is returned when an event or version does not exist.
	ErrNotFound = errors.New("pager: not found")
	// ErrInsufficientResults is returned when every loss model failed and no
	// version document can be assembled.
	ErrInsufficientResults = errors.New("pager: all loss models failed")
	// ErrVersionConflict is returned when a concurrent append won the version
	// number race and the bounded retries were exhausted.
	ErrVersionConflict = errors.New("pager: version number conflict")
)
