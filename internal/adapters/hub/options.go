package hub

import (
	"time"

	"github.com/facegate/facegate/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendTimeout bounds the time spent delivering to one subscriber.
func WithSendTimeout(timeout time.Duration) Option {
	return func(h *Hub) {
		if timeout > 0 {
			h.sendTimeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.logger = log
		}
	}
}
