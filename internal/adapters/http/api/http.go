// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/facegate/facegate/internal/adapters/hub"
	"github.com/facegate/facegate/internal/adapters/registry"
	service "github.com/facegate/facegate/internal/app"
	"github.com/facegate/facegate/internal/domain/attend"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/metrics"
)

// maxUploadBytes bounds one uploaded frame.
const maxUploadBytes = 16 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Enroll(ctx context.Context, studentID string, image []byte) (service.EnrollResult, error)
	Recognize(ctx context.Context, image []byte) ([]model.MatchResult, model.FrameInfo, error)
	RecognizeRealtime(ctx context.Context, image []byte, minConf float64, sendUnknown bool) (service.RealtimeResult, error)

	UpsertStudent(ctx context.Context, st registry.Student) (registry.Student, error)
	GetStudent(ctx context.Context, id string) (registry.Student, error)
	ListStudents(ctx context.Context, q string, limit, offset int) ([]registry.Student, error)

	AttendanceToday(ctx context.Context) []attend.Record
	AttendanceForStudent(ctx context.Context, id string, days int) []attend.Record

	Subscribe(s hub.Session) string
	Unsubscribe(id string)

	Tolerance() float64
	GetStats(ctx context.Context) map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	enrollHandler     *EnrollHandler
	recognizeHandler  *RecognizeHandler
	studentsHandler   *StudentsHandler
	attendanceHandler *AttendanceHandler
	healthHandler     *HealthHandler
	wsHandler         *WSHandler
	webhookHandler    *MockWebhookHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		enrollHandler:     NewEnrollHandler(deps),
		recognizeHandler:  NewRecognizeHandler(deps),
		studentsHandler:   NewStudentsHandler(deps),
		attendanceHandler: NewAttendanceHandler(deps),
		healthHandler:     NewHealthHandler(deps),
		wsHandler:         NewWSHandler(deps),
		webhookHandler:    NewMockWebhookHandler(),
	}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/enroll", MetricsMiddleware(s.enrollHandler.HandleEnroll, "enroll"))
	r.Post("/recognize", MetricsMiddleware(s.recognizeHandler.HandleRecognize, "recognize"))
	r.Post("/recognize/realtime", MetricsMiddleware(s.recognizeHandler.HandleRealtime, "recognize_realtime"))

	r.Post("/students", MetricsMiddleware(s.studentsHandler.HandleCreate, "students_create"))
	r.Get("/students", MetricsMiddleware(s.studentsHandler.HandleList, "students_list"))
	r.Get("/students/{id}", MetricsMiddleware(s.studentsHandler.HandleGet, "students_get"))

	r.Get("/attendance/today", MetricsMiddleware(s.attendanceHandler.HandleToday, "attendance_today"))
	r.Get("/attendance/students/{id}", MetricsMiddleware(s.attendanceHandler.HandleForStudent, "attendance_student"))

	r.Get("/ws/recognitions", s.wsHandler.HandleSubscribe)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/config", MetricsMiddleware(s.healthHandler.HandleConfig, "config"))
	r.Handle("/metrics", metrics.Handler())

	r.Post("/mock/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "mock_webhook"))

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// readImage extracts the uploaded frame from either a multipart form
// (field "image", "file" accepted as a fallback) or a raw request body.
func readImage(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		f, err := formImage(r)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return io.ReadAll(io.LimitReader(f, maxUploadBytes))
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrMissingImage
	}
	return data, nil
}

func formImage(r *http.Request) (multipart.File, error) {
	for _, field := range []string{"image", "file"} {
		f, _, err := r.FormFile(field)
		if err == nil {
			return f, nil
		}
	}
	return nil, ErrMissingImage
}
