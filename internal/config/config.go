// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() returning defaults; Load layers file and env on top.
// - External errors are wrapped via this package's sentinel kinds.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8400".
	Addr string `koanf:"addr"`

	// DataDir is the root for embeddings, attendance, and student files.
	DataDir string `koanf:"data_dir"`

	// EncoderURL points at the external detector/encoder sidecar.
	EncoderURL string `koanf:"encoder_url"`

	// EncoderTimeoutSeconds bounds one detector round trip.
	EncoderTimeoutSeconds int `koanf:"encoder_timeout_seconds"`

	// Dimension is the embedding vector length produced by the encoder.
	Dimension int `koanf:"dimension"`

	// Tolerance is the maximum match distance for a face to count as known.
	Tolerance float64 `koanf:"tolerance"`

	// WebhookURL receives attendance events. Empty disables dispatch.
	WebhookURL string `koanf:"webhook_url"`

	// WebhookToken is sent as a bearer credential when set.
	WebhookToken string `koanf:"webhook_token"`

	// CooldownSeconds is the minimum interval between dispatches per label.
	CooldownSeconds int `koanf:"cooldown_seconds"`

	// AttendanceEnabled toggles local attendance recording.
	AttendanceEnabled bool `koanf:"attendance_enabled"`

	// DedupWindowSeconds is the sighting dedup window; <= 0 means strict
	// once per calendar day.
	DedupWindowSeconds int `koanf:"dedup_window_seconds"`

	// QueueSize bounds the in-memory sighting queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of sighting workers.
	WorkerCount int `koanf:"worker_count"`

	// WSSendTimeoutMS bounds one subscriber send during a broadcast.
	WSSendTimeoutMS int `koanf:"ws_send_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8400",
		DataDir:               "data",
		EncoderURL:            "http://localhost:8500",
		EncoderTimeoutSeconds: 15,
		Dimension:             128,
		Tolerance:             0.45,
		CooldownSeconds:       5,
		AttendanceEnabled:     true,
		DedupWindowSeconds:    60,
		QueueSize:             4096,
		WorkerCount:           2,
		WSSendTimeoutMS:       2000,
	}
}
