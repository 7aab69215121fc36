package repository

import "errors"

// Sentinel kinds for embedding store errors.
var (
	ErrShapeMismatch = errors.New("embedding dimension mismatch")
	ErrBadLabel      = errors.New("invalid label")
)
