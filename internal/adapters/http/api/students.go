// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/adapters/registry"
)

// StudentsHandler handles student record requests.
type StudentsHandler struct {
	deps Dependencies
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(deps Dependencies) *StudentsHandler {
	return &StudentsHandler{deps: deps}
}

// studentResponse wraps a student record with its optional enrollment result.
type studentResponse struct {
	Student registry.Student `json:"student"`
	Enroll  any              `json:"enroll,omitempty"`
}

// HandleCreate handles POST /students requests. The multipart form carries
// the student fields and, optionally, an image enrolled in the same call
// when enroll_after_upload is true.
func (h *StudentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.students_create"

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	st := registry.Student{
		ID:        strings.TrimSpace(r.FormValue("student_id")),
		FullName:  strings.TrimSpace(r.FormValue("full_name")),
		BirthDate: strings.TrimSpace(r.FormValue("birth_date")),
		ClassName: strings.TrimSpace(r.FormValue("class_name")),
		Address:   strings.TrimSpace(r.FormValue("address")),
	}
	if st.ID == "" {
		writeError(w, http.StatusBadRequest, "missing_student_id", NewKind(op, ErrBadRequest))
		return
	}

	saved, err := h.deps.UpsertStudent(r.Context(), st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	resp := studentResponse{Student: saved}

	if r.FormValue("enroll_after_upload") == "true" {
		f, _, ferr := r.FormFile("image")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "missing_image", WrapKind(op, ErrMissingImage, ferr))
			return
		}
		image, rerr := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		_ = f.Close()
		if rerr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, rerr))
			return
		}

		enrollRes, eerr := h.deps.Enroll(r.Context(), st.ID, image)
		if eerr != nil {
			writeEnrollError(w, op, eerr)
			return
		}
		resp.Enroll = enrollRes
		if fresh, gerr := h.deps.GetStudent(r.Context(), st.ID); gerr == nil {
			resp.Student = fresh
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /students requests with q, limit, and offset.
func (h *StudentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	students, err := h.deps.ListStudents(r.Context(), q, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if students == nil {
		students = []registry.Student{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"students": students, "count": len(students)})
}

// HandleGet handles GET /students/{id} requests.
func (h *StudentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.students_get"

	id := chi.URLParam(r, "id")
	st, err := h.deps.GetStudent(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, registry.ErrNotFound))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
