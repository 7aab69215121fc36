// Package encoder talks to the external face detector/encoder. Detection
// and embedding extraction are a black box behind this interface; the
// service only consumes boxes and fixed-dimension vectors.
package encoder

import (
	"context"

	"github.com/facegate/facegate/internal/domain/model"
)

// Encoder detects faces on a frame and returns one embedding per face.
type Encoder interface {
	// Detect analyzes an encoded image and returns the detected faces and
	// frame dimensions. Zero faces is a normal outcome, not an error.
	Detect(ctx context.Context, image []byte) ([]model.DetectedFace, model.FrameInfo, error)
}
