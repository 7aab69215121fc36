// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/facegate/facegate/internal/adapters/encoder"
	"github.com/facegate/facegate/internal/adapters/repository"
)

// EnrollHandler handles enrollment requests.
type EnrollHandler struct {
	deps Dependencies
}

// NewEnrollHandler creates a new enroll handler.
func NewEnrollHandler(deps Dependencies) *EnrollHandler {
	return &EnrollHandler{deps: deps}
}

// HandleEnroll handles POST /enroll requests. The request is a multipart
// form carrying student_id and an image; every detected face is stored as
// a reference vector for that student.
func (h *EnrollHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	const op = "api.enroll"

	image, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	studentID := strings.TrimSpace(r.FormValue("student_id"))
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "missing_student_id", NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.deps.Enroll(r.Context(), studentID, image)
	if err != nil {
		writeEnrollError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeEnrollError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, encoder.ErrInvalidImage),
		errors.Is(err, repository.ErrBadLabel),
		errors.Is(err, repository.ErrShapeMismatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, encoder.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "encoder_unavailable", WrapKind(op, ErrUpstream, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
