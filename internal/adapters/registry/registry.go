// Package registry keeps student records keyed by the enrollment label.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/facegate/facegate/pkg/logger"
)

// List bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Student is one identity record. ID doubles as the recognition label.
type Student struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	BirthDate      string `json:"birth_date,omitempty"`
	ClassName      string `json:"class_name,omitempty"`
	Address        string `json:"address,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	EmbeddingCount int    `json:"embedding_count"`
	LastEnrolledAt int64  `json:"last_enrolled_at,omitempty"`
}

// Registry provides keyed access to student records.
type Registry interface {
	// Upsert creates the record or updates the provided non-empty fields
	// of an existing one, never clearing fields by omission.
	Upsert(ctx context.Context, s Student) (Student, error)

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Student, error)

	// List returns records filtered by a naive contains match on id and
	// full name, ordered by id, with limit/offset paging.
	List(ctx context.Context, q string, limit, offset int) ([]Student, error)

	// SetEmbeddingMeta refreshes the derived enrollment metadata.
	SetEmbeddingMeta(ctx context.Context, id string, count int, enrolledAt int64) error
}

// fileRegistry implements Registry with an in-memory map and JSON file
// persistence.
type fileRegistry struct {
	mu       sync.Mutex
	students map[string]*Student

	path   string
	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the registry.
type Option func(*fileRegistry)

// WithPath sets the JSON persistence path. Empty disables persistence.
func WithPath(path string) Option {
	return func(r *fileRegistry) {
		r.path = path
	}
}

// WithNow overrides the clock. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(r *fileRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(r *fileRegistry) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewFileRegistry creates a registry and loads previously persisted records.
func NewFileRegistry(opts ...Option) Registry {
	r := &fileRegistry{
		students: make(map[string]*Student),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logger.Get().Named("registry")
	}

	r.load()

	return r
}

func (r *fileRegistry) Upsert(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		return Student{}, ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.students[s.ID]
	if !ok {
		created := s
		created.CreatedAt = r.now().Unix()
		r.students[s.ID] = &created
		r.persistLocked(ctx)
		return created, nil
	}

	if s.FullName != "" {
		existing.FullName = s.FullName
	}
	if s.BirthDate != "" {
		existing.BirthDate = s.BirthDate
	}
	if s.ClassName != "" {
		existing.ClassName = s.ClassName
	}
	if s.Address != "" {
		existing.Address = s.Address
	}
	r.persistLocked(ctx)
	return *existing, nil
}

func (r *fileRegistry) Get(ctx context.Context, id string) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.students[id]
	if !ok {
		return Student{}, fmt.Errorf("student %q: %w", id, ErrNotFound)
	}
	return *s, nil
}

func (r *fileRegistry) List(ctx context.Context, q string, limit, offset int) ([]Student, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Student, 0, len(r.students))
	needle := strings.ToLower(q)
	for _, s := range r.students {
		if needle != "" &&
			!strings.Contains(strings.ToLower(s.ID), needle) &&
			!strings.Contains(strings.ToLower(s.FullName), needle) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if offset >= len(out) {
		return []Student{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fileRegistry) SetEmbeddingMeta(ctx context.Context, id string, count int, enrolledAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.students[id]
	if !ok {
		return fmt.Errorf("student %q: %w", id, ErrNotFound)
	}
	s.EmbeddingCount = count
	if count > 0 && enrolledAt > 0 {
		s.LastEnrolledAt = enrolledAt
	}
	r.persistLocked(ctx)
	return nil
}

func (r *fileRegistry) load() {
	if r.path == "" {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn(context.Background(), "failed to read student file",
				logger.String("path", r.path), logger.Error(err))
		}
		return
	}
	var students []Student
	if err := json.Unmarshal(data, &students); err != nil {
		r.logger.Warn(context.Background(), "skipping corrupt student file",
			logger.String("path", r.path), logger.Error(err))
		return
	}
	for i := range students {
		r.students[students[i].ID] = &students[i]
	}
}

// persistLocked writes all records best-effort. Must hold r.mu.
func (r *fileRegistry) persistLocked(ctx context.Context) {
	if r.path == "" {
		return
	}

	students := make([]Student, 0, len(r.students))
	for _, s := range r.students {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })

	data, err := json.MarshalIndent(students, "", "  ")
	if err != nil {
		r.logger.Error(ctx, "failed to encode student records", logger.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.logger.Error(ctx, "failed to create registry dir", logger.Error(err))
		return
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.logger.Error(ctx, "failed to write student file", logger.Error(err))
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		r.logger.Error(ctx, "failed to replace student file", logger.Error(err))
	}
}
