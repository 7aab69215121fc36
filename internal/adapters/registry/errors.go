package registry

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrNotFound = errors.New("student not found")
	ErrEmptyID  = errors.New("student id must not be empty")
)
