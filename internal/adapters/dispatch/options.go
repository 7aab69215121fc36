package dispatch

import (
	"net/http"
	"time"

	"github.com/facegate/facegate/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithWebhookURL sets the endpoint events are POSTed to. Empty disables
// dispatch.
func WithWebhookURL(url string) Option {
	return func(d *Dispatcher) {
		d.webhookURL = url
	}
}

// WithToken sets the bearer credential sent with each dispatch.
func WithToken(token string) Option {
	return func(d *Dispatcher) {
		d.token = token
	}
}

// WithCooldown sets the minimum interval between dispatches per label.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithNow overrides the cooldown clock. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}
