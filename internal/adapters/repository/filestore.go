package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate/internal/domain/match"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

const embeddingExt = ".json"

// fileStore implements Store with one JSON file per label, each holding an
// array of fixed-dimension vectors. Appends are rare (enrollment) relative
// to reads, so the snapshot is rebuilt wholesale on every write and swapped
// atomically; readers are lock-free.
type fileStore struct {
	dir    string
	dim    int
	logger logger.Logger

	mu   sync.Mutex // serializes Append and Load against each other
	snap atomic.Pointer[Snapshot]
}

// NewFileStore creates a file-backed store with configuration options.
// Call Load before first use.
func NewFileStore(opts ...Option) Store {
	s := &fileStore{
		dim: model.DefaultDim,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	s.snap.Store(&Snapshot{counts: make(map[string]int)})

	return s
}

// Load rebuilds the snapshot from the embedding directory.
func (s *fileStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

// Append validates and merges vectors into the label's backing file, then
// triggers a full reload so the snapshot reflects the write.
func (s *fileStore) Append(ctx context.Context, label string, vectors []model.Embedding) (int, error) {
	if label == "" || label != filepath.Base(label) || strings.HasPrefix(label, ".") {
		return 0, fmt.Errorf("append %q: %w", label, ErrBadLabel)
	}

	valid := make([]model.Embedding, 0, len(vectors))
	rejected := 0
	for _, v := range vectors {
		if len(v) != s.dim {
			rejected++
			metrics.RecordVectorRejected()
			s.logger.Warn(ctx, "rejecting vector with wrong dimension",
				logger.String("label", label),
				logger.Int("got", len(v)),
				logger.Int("want", s.dim),
			)
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		if rejected > 0 {
			return 0, fmt.Errorf("append %q: %w", label, ErrShapeMismatch)
		}
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readLabelFile(label)
	if err != nil {
		// Corrupt backing file; start over rather than fail enrollment.
		s.logger.Warn(ctx, "resetting corrupt embedding file",
			logger.String("label", label), logger.Error(err))
		existing = nil
	}
	merged := append(existing, valid...)

	if err := s.writeLabelFile(label, merged); err != nil {
		return 0, fmt.Errorf("append %q: %w", label, err)
	}

	if err := s.rebuildLocked(ctx); err != nil {
		return len(valid), fmt.Errorf("reload after append: %w", err)
	}
	return len(valid), nil
}

// Snapshot returns the current read-only view. Lock-free.
func (s *fileStore) Snapshot() *Snapshot {
	return s.snap.Load()
}

// rebuildLocked scans the directory and swaps in a fresh snapshot.
// Must be called with s.mu held.
func (s *fileStore) rebuildLocked(ctx context.Context) error {
	start := time.Now()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create embedding dir: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read embedding dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), embeddingExt) {
			continue
		}
		names = append(names, e.Name())
	}
	// Stable iteration order keeps tie-breaks deterministic across reloads.
	sort.Strings(names)

	snap := &Snapshot{counts: make(map[string]int)}
	for _, name := range names {
		label := strings.TrimSuffix(name, embeddingExt)
		vectors, err := s.readLabelFile(label)
		if err != nil {
			s.logger.Warn(ctx, "skipping corrupt embedding entry",
				logger.String("label", label), logger.Error(err))
			continue
		}
		for _, v := range vectors {
			if len(v) != s.dim {
				s.logger.Warn(ctx, "skipping stored vector with wrong dimension",
					logger.String("label", label), logger.Int("got", len(v)))
				continue
			}
			snap.refs = append(snap.refs, match.Ref{Label: label, Vector: v})
			snap.counts[label]++
		}
	}

	s.snap.Store(snap)

	metrics.RecordSnapshotRebuild(float64(time.Since(start).Milliseconds()))
	metrics.UpdateStoreSize(snap.Vectors(), snap.Labels())
	s.logger.Debug(ctx, "embedding snapshot rebuilt",
		logger.Int("vectors", snap.Vectors()),
		logger.Int("labels", snap.Labels()),
	)
	return nil
}

func (s *fileStore) labelPath(label string) string {
	return filepath.Join(s.dir, label+embeddingExt)
}

func (s *fileStore) readLabelFile(label string) ([]model.Embedding, error) {
	data, err := os.ReadFile(s.labelPath(label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read embeddings for %q: %w", label, err)
	}
	var vectors []model.Embedding
	if err := json.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("decode embeddings for %q: %w", label, err)
	}
	return vectors, nil
}

func (s *fileStore) writeLabelFile(label string, vectors []model.Embedding) error {
	data, err := json.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("encode embeddings for %q: %w", label, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create embedding dir: %w", err)
	}
	tmp := s.labelPath(label) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write embeddings for %q: %w", label, err)
	}
	if err := os.Rename(tmp, s.labelPath(label)); err != nil {
		return fmt.Errorf("replace embeddings for %q: %w", label, err)
	}
	return nil
}
