// Package repository provides the reference-embedding store: a file-backed
// set of label to vector-array entries with an immutable in-memory snapshot.
package repository

import (
	"context"

	"github.com/facegate/facegate/internal/domain/match"
	"github.com/facegate/facegate/internal/domain/model"
)

// Snapshot is an immutable point-in-time view of the store. Readers hold a
// reference and never observe a partially rebuilt state.
type Snapshot struct {
	refs   []match.Ref
	counts map[string]int
}

// Refs returns all (label, vector) pairs in stable iteration order.
// The returned slice must not be modified.
func (s *Snapshot) Refs() []match.Ref { return s.refs }

// CountFor returns the number of vectors stored for a label.
func (s *Snapshot) CountFor(label string) int { return s.counts[label] }

// Vectors returns the total number of stored vectors.
func (s *Snapshot) Vectors() int { return len(s.refs) }

// Labels returns the number of labels with at least one vector.
func (s *Snapshot) Labels() int { return len(s.counts) }

// Store provides access to persisted reference embeddings.
type Store interface {
	// Load rebuilds the in-memory snapshot from the backing store,
	// replacing the old one atomically. Corrupt entries are skipped with
	// a warning, never fatal to the whole load.
	Load(ctx context.Context) error

	// Append merges vectors into the backing array for label, creating it
	// if absent, and refreshes the snapshot. Vectors of the wrong
	// dimension are rejected without aborting the rest of the batch.
	// Returns the number of vectors appended.
	Append(ctx context.Context, label string, vectors []model.Embedding) (int, error)

	// Snapshot returns the current read-only view.
	Snapshot() *Snapshot
}
