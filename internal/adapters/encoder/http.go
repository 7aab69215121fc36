package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facegate/facegate/internal/domain/model"
)

const (
	defaultEncoderURL = "http://localhost:8500"
	defaultTimeout    = 15 * time.Second
	detectPath        = "/detect"
	maxErrorBody      = 1 << 10
)

// HTTPEncoder implements Encoder against a sidecar detector service that
// accepts a raw frame and returns boxes plus embeddings.
type HTTPEncoder struct {
	baseURL string
	client  *http.Client
}

// HTTPOption applies a configuration option to the HTTPEncoder.
type HTTPOption func(*HTTPEncoder)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(e *HTTPEncoder) {
		if timeout > 0 {
			e.client.Timeout = timeout
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEncoder) {
		if client != nil {
			e.client = client
		}
	}
}

// NewHTTPEncoder creates an encoder client for the given base URL.
func NewHTTPEncoder(baseURL string, opts ...HTTPOption) (*HTTPEncoder, error) {
	if baseURL == "" {
		baseURL = defaultEncoderURL
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid encoder URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid encoder URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid encoder URL: missing host")
	}

	e := &HTTPEncoder{
		baseURL: parsed.String(),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// detectResponse mirrors the detector sidecar's wire format.
type detectResponse struct {
	Frame frameInfoDTO `json:"frame"`
	Faces []faceDTO    `json:"faces"`
}

type frameInfoDTO struct {
	W int `json:"w"`
	H int `json:"h"`
}

type faceDTO struct {
	Box struct {
		Top    int `json:"top"`
		Right  int `json:"right"`
		Bottom int `json:"bottom"`
		Left   int `json:"left"`
	} `json:"box"`
	Embedding []float64 `json:"embedding"`
}

// Detect posts the frame to the sidecar and decodes the detections.
// A 4xx from the sidecar maps to ErrInvalidImage; anything else that goes
// wrong maps to ErrUnavailable.
func (e *HTTPEncoder) Detect(ctx context.Context, image []byte) ([]model.DetectedFace, model.FrameInfo, error) {
	if len(image) == 0 {
		return nil, model.FrameInfo{}, ErrInvalidImage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+detectPath, bytes.NewReader(image))
	if err != nil {
		return nil, model.FrameInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, model.FrameInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, model.FrameInfo{}, fmt.Errorf("%w: %s", ErrInvalidImage, strings.TrimSpace(string(msg)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.FrameInfo{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var dto detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, model.FrameInfo{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	faces := make([]model.DetectedFace, len(dto.Faces))
	for i, f := range dto.Faces {
		faces[i] = model.DetectedFace{
			Box: model.Box{
				Top:    f.Box.Top,
				Right:  f.Box.Right,
				Bottom: f.Box.Bottom,
				Left:   f.Box.Left,
			},
			Vector: model.Embedding(f.Embedding),
		}
	}
	return faces, model.FrameInfo{W: dto.Frame.W, H: dto.Frame.H}, nil
}
