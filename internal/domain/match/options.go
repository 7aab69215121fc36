package match

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTolerance sets the maximum distance for a match to count as known.
func WithTolerance(tolerance float64) Option {
	return func(e *Engine) {
		if tolerance > 0 {
			e.tolerance = tolerance
		}
	}
}
