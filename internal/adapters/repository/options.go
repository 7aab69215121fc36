package repository

import "github.com/facegate/facegate/pkg/logger"

// Option applies a configuration option to the file store.
type Option func(*fileStore)

// WithDir sets the directory holding per-label embedding files.
func WithDir(dir string) Option {
	return func(s *fileStore) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) Option {
	return func(s *fileStore) {
		if dim > 0 {
			s.dim = dim
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *fileStore) {
		if log != nil {
			s.logger = log
		}
	}
}
