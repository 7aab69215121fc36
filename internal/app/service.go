// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/adapters/dispatch"
	"github.com/facegate/facegate/internal/adapters/encoder"
	"github.com/facegate/facegate/internal/adapters/hub"
	sightingqueue "github.com/facegate/facegate/internal/adapters/mq/queue"
	workerpool "github.com/facegate/facegate/internal/adapters/mq/worker"
	"github.com/facegate/facegate/internal/adapters/registry"
	"github.com/facegate/facegate/internal/adapters/repository"
	"github.com/facegate/facegate/internal/domain/attend"
	"github.com/facegate/facegate/internal/domain/match"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Default service configuration.
const (
	defaultDataDir        = "data"
	defaultQueueSize      = 4096
	defaultWorkerCount    = 2
	defaultEncoderTimeout = 15 * time.Second
)

// EnrollResult reports the outcome of enrolling one image.
type EnrollResult struct {
	StudentID  string `json:"student_id"`
	FacesFound int    `json:"faces_found"`
	Saved      int    `json:"saved"`
	Total      int    `json:"total_embeddings"`
}

// DispatchEntry pairs one dispatch attempt with the label it targeted.
type DispatchEntry struct {
	Label  string          `json:"label"`
	Report dispatch.Report `json:"report"`
}

// RealtimeResult is the outcome of one realtime recognition pass. Results
// carries the raw recognition output; Dispatch lists every attempted
// webhook delivery, in face order.
type RealtimeResult struct {
	Results        []model.MatchResult `json:"results"`
	Dispatch       []DispatchEntry     `json:"dispatch"`
	FrameInfo      model.FrameInfo     `json:"frame_info"`
	WebhookEnabled bool                `json:"webhook_enabled"`
}

// Service composes the recognition pipeline behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	engine     *match.Engine
	ledger     attend.Ledger
	dispatcher *dispatch.Dispatcher
	hub        *hub.Hub
	students   registry.Registry
	encoder    encoder.Encoder
	queue      sightingqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	dataDir           string
	dimension         int
	tolerance         float64
	encoderURL        string
	encoderTimeout    time.Duration
	webhookURL        string
	webhookToken      string
	cooldown          time.Duration
	attendanceEnabled bool
	dedupWindow       int
	queueSize         int
	workerCount       int
	wsSendTimeout     time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataDir sets the root directory for embeddings and attendance files.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

// WithDimension sets the expected embedding vector length.
func WithDimension(dim int) Option {
	return func(s *Service) {
		if dim > 0 {
			s.dimension = dim
		}
	}
}

// WithTolerance sets the maximum distance for a face to count as known.
func WithTolerance(tolerance float64) Option {
	return func(s *Service) {
		if tolerance > 0 {
			s.tolerance = tolerance
		}
	}
}

// WithEncoder injects a detector/encoder client, overriding the HTTP default.
func WithEncoder(enc encoder.Encoder) Option {
	return func(s *Service) {
		if enc != nil {
			s.encoder = enc
		}
	}
}

// WithEncoderURL points the default HTTP encoder at a sidecar address.
func WithEncoderURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.encoderURL = url
		}
	}
}

// WithEncoderTimeout bounds one detector round trip.
func WithEncoderTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.encoderTimeout = timeout
		}
	}
}

// WithWebhook configures the dispatch target. An empty URL disables dispatch.
func WithWebhook(url, token string) Option {
	return func(s *Service) {
		s.webhookURL = url
		s.webhookToken = token
	}
}

// WithCooldown sets the per-label dispatch cooldown.
func WithCooldown(cooldown time.Duration) Option {
	return func(s *Service) {
		if cooldown > 0 {
			s.cooldown = cooldown
		}
	}
}

// WithAttendance toggles attendance recording and sets the dedup window in
// seconds. A window <= 0 means strict once per calendar day.
func WithAttendance(enabled bool, windowSeconds int) Option {
	return func(s *Service) {
		s.attendanceEnabled = enabled
		s.dedupWindow = windowSeconds
	}
}

// WithQueueSize sets the sighting queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of sighting workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithWSSendTimeout bounds one subscriber send during a broadcast.
func WithWSSendTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.wsSendTimeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dataDir:           defaultDataDir,
		dimension:         model.DefaultDim,
		tolerance:         match.DefaultTolerance,
		encoderTimeout:    defaultEncoderTimeout,
		cooldown:          dispatch.DefaultCooldown,
		attendanceEnabled: true,
		dedupWindow:       60,
		queueSize:         defaultQueueSize,
		workerCount:       defaultWorkerCount,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting recognition service...")

	s.store = repository.NewFileStore(
		repository.WithDir(filepath.Join(s.dataDir, "embeddings")),
		repository.WithDimension(s.dimension),
	)
	if err := s.store.Load(ctx); err != nil {
		return fmt.Errorf("load embedding store: %w", err)
	}

	s.engine = match.New(
		match.WithTolerance(s.tolerance),
	)

	s.ledger = attend.NewInMemoryLedger(
		attend.WithEnabled(s.attendanceEnabled),
		attend.WithWindow(s.dedupWindow),
		attend.WithPath(filepath.Join(s.dataDir, "attendance.json")),
	)

	s.dispatcher = dispatch.New(
		dispatch.WithWebhookURL(s.webhookURL),
		dispatch.WithToken(s.webhookToken),
		dispatch.WithCooldown(s.cooldown),
	)

	hubOpts := []hub.Option{}
	if s.wsSendTimeout > 0 {
		hubOpts = append(hubOpts, hub.WithSendTimeout(s.wsSendTimeout))
	}
	s.hub = hub.New(hubOpts...)

	s.students = registry.NewFileRegistry(
		registry.WithPath(filepath.Join(s.dataDir, "students.json")),
	)

	if s.encoder == nil {
		enc, err := encoder.NewHTTPEncoder(s.encoderURL,
			encoder.WithTimeout(s.encoderTimeout),
		)
		if err != nil {
			return fmt.Errorf("build encoder client: %w", err)
		}
		s.encoder = enc
	}

	s.queue = sightingqueue.NewInMemoryQueue(
		sightingqueue.WithCapacity(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.ledger)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "recognition service started",
		logger.Int("dimension", s.dimension),
		logger.Float64("tolerance", s.tolerance),
		logger.Bool("webhookEnabled", s.dispatcher.Enabled()),
		logger.Bool("attendanceEnabled", s.attendanceEnabled),
		logger.Int("workers", s.workerCount),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping recognition service...")

	// Close the queue first so worker dequeue channels terminate.
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "recognition service stopped")
}

// Enroll detects faces in one image and stores their vectors under studentID.
func (s *Service) Enroll(ctx context.Context, studentID string, image []byte) (EnrollResult, error) {
	res := EnrollResult{StudentID: studentID}

	faces, _, err := s.encoder.Detect(ctx, image)
	if err != nil {
		return res, err
	}
	res.FacesFound = len(faces)
	if len(faces) == 0 {
		return res, nil
	}

	vectors := make([]model.Embedding, 0, len(faces))
	for _, f := range faces {
		vectors = append(vectors, f.Vector)
	}

	saved, err := s.store.Append(ctx, studentID, vectors)
	res.Saved = saved
	if err != nil {
		return res, err
	}

	res.Total = s.store.Snapshot().CountFor(studentID)
	metrics.RecordEnrollment()

	// Keep student metadata in sync; create the record if it does not exist.
	if _, rerr := s.students.Upsert(ctx, registry.Student{ID: studentID}); rerr != nil {
		s.logger.Warn(ctx, "student upsert failed", logger.Error(rerr))
	} else if rerr := s.students.SetEmbeddingMeta(ctx, studentID, res.Total, time.Now().Unix()); rerr != nil {
		s.logger.Warn(ctx, "student embedding meta update failed", logger.Error(rerr))
	}

	s.hub.Broadcast(ctx, model.EnrolledMessage{
		Type:      model.MessageStudentEnrolled,
		StudentID: studentID,
		Saved:     saved,
	})

	return res, nil
}

// Recognize matches every face in one image against the current snapshot.
func (s *Service) Recognize(ctx context.Context, image []byte) ([]model.MatchResult, model.FrameInfo, error) {
	start := time.Now()

	faces, frame, err := s.encoder.Detect(ctx, image)
	if err != nil {
		return nil, model.FrameInfo{}, err
	}

	snap := s.store.Snapshot()
	results := s.engine.RecognizeBatch(faces, snap.Refs())

	metrics.RecordRecognition()
	metrics.RecordMatchLatency(float64(time.Since(start).Milliseconds()))
	for _, r := range results {
		if r.Known() {
			metrics.RecordMatch()
		} else {
			metrics.RecordUnknown()
		}
	}

	return results, frame, nil
}

// RecognizeRealtime recognizes faces and drives the side effects for faces
// passing the confidence gate: webhook dispatch, live broadcast, and a
// queued attendance sighting. minConf, when positive, replaces the engine
// tolerance as the gate. sendUnknown extends dispatch and broadcast to
// unknown faces, with the cooldown keyed on the Unknown label; unknowns
// never produce attendance. The returned results are the raw recognition
// output, unaffected by the gate.
func (s *Service) RecognizeRealtime(ctx context.Context, image []byte, minConf float64, sendUnknown bool) (RealtimeResult, error) {
	out := RealtimeResult{WebhookEnabled: s.dispatcher.Enabled()}

	results, frame, err := s.Recognize(ctx, image)
	if err != nil {
		return out, err
	}
	if results == nil {
		results = []model.MatchResult{}
	}
	out.Results = results
	out.FrameInfo = frame

	gate := s.tolerance
	if minConf > 0 {
		gate = minConf
	}

	now := time.Now().Unix()
	out.Dispatch = make([]DispatchEntry, 0, len(results))
	for _, r := range results {
		known := r.Known() && *r.Distance <= gate
		if !known && !(sendUnknown && r.Label == model.Unknown) {
			continue
		}

		payload := model.DispatchPayload{
			Event:     model.EventName,
			StudentID: r.Label,
			Distance:  r.Distance,
			TS:        now,
			FrameInfo: frame,
			Box:       r.Box,
		}
		report := s.dispatcher.MaybeSend(ctx, r.Label, payload)
		out.Dispatch = append(out.Dispatch, DispatchEntry{Label: r.Label, Report: report})

		s.hub.Broadcast(ctx, model.RecognizedMessage{
			Type:      model.MessageRecognized,
			StudentID: r.Label,
			Distance:  r.Distance,
			TS:        now,
			Dispatch:  report,
		})

		if known && s.attendanceEnabled {
			if ok := s.queue.Enqueue(ctx, model.Sighting{StudentID: r.Label, TS: now}); !ok {
				s.logger.Warn(ctx, "sighting dropped, queue full",
					logger.String("studentID", r.Label))
			}
		}
	}

	return out, nil
}

// UpsertStudent creates or updates a student record.
func (s *Service) UpsertStudent(ctx context.Context, st registry.Student) (registry.Student, error) {
	return s.students.Upsert(ctx, st)
}

// GetStudent returns one student by id.
func (s *Service) GetStudent(ctx context.Context, id string) (registry.Student, error) {
	return s.students.Get(ctx, id)
}

// ListStudents returns students filtered by q with pagination.
func (s *Service) ListStudents(ctx context.Context, q string, limit, offset int) ([]registry.Student, error) {
	return s.students.List(ctx, q, limit, offset)
}

// AttendanceToday returns today's attendance records.
func (s *Service) AttendanceToday(ctx context.Context) []attend.Record {
	return s.ledger.Today(ctx)
}

// AttendanceForStudent returns a student's records over the last days.
func (s *Service) AttendanceForStudent(ctx context.Context, id string, days int) []attend.Record {
	return s.ledger.ForStudent(ctx, id, days)
}

// Subscribe registers a live session and returns its id.
func (s *Service) Subscribe(sess hub.Session) string {
	return s.hub.Subscribe(sess)
}

// Unsubscribe removes a live session.
func (s *Service) Unsubscribe(id string) {
	s.hub.Unsubscribe(id)
}

// Tolerance returns the configured match tolerance.
func (s *Service) Tolerance() float64 { return s.tolerance }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"dimension":          s.dimension,
		"tolerance":          s.tolerance,
		"webhook_enabled":    s.webhookURL != "",
		"cooldown_seconds":   int(s.cooldown / time.Second),
		"attendance_enabled": s.attendanceEnabled,
		"dedup_window":       s.dedupWindow,
		"worker_count":       s.workerCount,
	}

	if s.started {
		snap := s.store.Snapshot()
		stats["known_students"] = snap.Labels()
		stats["total_embeddings"] = snap.Vectors()
		stats["queue_length"] = s.queue.Len(ctx)
		stats["subscribers"] = s.hub.Count()
		stats["attendance_records"] = s.ledger.Count(ctx)

		metrics.UpdateStoreSize(snap.Vectors(), snap.Labels())
		metrics.UpdateQueueSize(s.queue.Len(ctx))
		metrics.UpdateBroadcastSubscribers(s.hub.Count())
	}

	return stats
}
