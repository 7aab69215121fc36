package attend

import (
	"time"

	"github.com/facegate/facegate/pkg/logger"
)

// Option applies a configuration option to the ledger.
type Option func(*inMemoryLedger)

// WithEnabled toggles attendance recording. When disabled, Record always
// reports the sighting as not accepted.
func WithEnabled(enabled bool) Option {
	return func(l *inMemoryLedger) {
		l.enabled = enabled
	}
}

// WithWindow sets the dedup window in seconds. Zero or negative means
// strict once per calendar day.
func WithWindow(seconds int) Option {
	return func(l *inMemoryLedger) {
		l.window = int64(seconds)
	}
}

// WithPath sets the JSON persistence path. Empty disables persistence.
func WithPath(path string) Option {
	return func(l *inMemoryLedger) {
		l.path = path
	}
}

// WithNow overrides the clock used to derive "today". Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(l *inMemoryLedger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(l *inMemoryLedger) {
		if log != nil {
			l.logger = log
		}
	}
}
