package encoder

import "errors"

// Sentinel kinds for encoder errors.
var (
	// ErrInvalidImage marks an unreadable or empty image payload; the only
	// error category surfaced to API callers as a client error.
	ErrInvalidImage = errors.New("invalid image payload")

	// ErrUnavailable marks a transport or server-side encoder failure.
	ErrUnavailable = errors.New("encoder unavailable")
)
