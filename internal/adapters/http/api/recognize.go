// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/facegate/facegate/internal/adapters/encoder"
	"github.com/facegate/facegate/internal/domain/model"
)

// RecognizeHandler handles recognition requests.
type RecognizeHandler struct {
	deps Dependencies
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(deps Dependencies) *RecognizeHandler {
	return &RecognizeHandler{deps: deps}
}

// recognizeResponse mirrors the response shape for POST /recognize.
type recognizeResponse struct {
	Results   []model.MatchResult `json:"results"`
	FrameInfo model.FrameInfo     `json:"frame_info"`
}

// HandleRecognize handles POST /recognize requests. Every face in the
// uploaded frame is matched against the current reference snapshot; no
// side effects are triggered.
func (h *RecognizeHandler) HandleRecognize(w http.ResponseWriter, r *http.Request) {
	const op = "api.recognize"

	image, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	results, frame, err := h.deps.Recognize(r.Context(), image)
	if err != nil {
		writeRecognizeError(w, op, err)
		return
	}
	if results == nil {
		results = []model.MatchResult{}
	}

	writeJSON(w, http.StatusOK, recognizeResponse{Results: results, FrameInfo: frame})
}

// HandleRealtime handles POST /recognize/realtime requests. Recognized
// faces additionally trigger webhook dispatch, live broadcast, and an
// attendance sighting. Query params:
//
//	min_conf     when positive, replaces the tolerance as the dispatch gate
//	send_unknown dispatch and broadcast unknown faces as well
func (h *RecognizeHandler) HandleRealtime(w http.ResponseWriter, r *http.Request) {
	const op = "api.recognize_realtime"

	image, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var minConf float64
	if raw := r.URL.Query().Get("min_conf"); raw != "" {
		minConf, err = strconv.ParseFloat(raw, 64)
		if err != nil || minConf < 0 {
			writeError(w, http.StatusBadRequest, "bad_min_conf", NewKind(op, ErrBadRequest))
			return
		}
	}
	sendUnknown := r.URL.Query().Get("send_unknown") == "true"

	out, err := h.deps.RecognizeRealtime(r.Context(), image, minConf, sendUnknown)
	if err != nil {
		writeRecognizeError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func writeRecognizeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, encoder.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "invalid_image", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, encoder.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "encoder_unavailable", WrapKind(op, ErrUpstream, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
