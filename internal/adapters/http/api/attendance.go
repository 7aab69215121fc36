// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/domain/attend"
)

// defaultAttendanceDays bounds the per-student history query.
const (
	defaultAttendanceDays = 7
	maxAttendanceDays     = 90
)

// AttendanceHandler handles attendance query requests.
type AttendanceHandler struct {
	deps Dependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps Dependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// HandleToday handles GET /attendance/today requests.
func (h *AttendanceHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	records := h.deps.AttendanceToday(r.Context())
	if records == nil {
		records = []attend.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

// HandleForStudent handles GET /attendance/students/{id}?days= requests.
func (h *AttendanceHandler) HandleForStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	days := queryInt(r, "days", defaultAttendanceDays)
	if days < 1 {
		days = defaultAttendanceDays
	}
	if days > maxAttendanceDays {
		days = maxAttendanceDays
	}

	records := h.deps.AttendanceForStudent(r.Context(), id, days)
	if records == nil {
		records = []attend.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student_id": id,
		"days":       days,
		"records":    records,
		"count":      len(records),
	})
}
