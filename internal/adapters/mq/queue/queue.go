// Package queue defines the contract for enqueuing and consuming sightings
// bound for asynchronous attendance recording.
package queue

import (
	"context"
	"sync"

	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/metrics"
)

// defaultCapacity bounds the in-memory sighting queue.
const defaultCapacity = 4096

// Sighting is the payload type flowing through the queue.
type Sighting = model.Sighting

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a sighting. Returns false if the queue is full or
	// closed; the sighting is dropped (attendance is best-effort).
	Enqueue(ctx context.Context, s Sighting) bool

	// Dequeue returns a channel receiving sightings as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Sighting

	// Len returns the current number of queued sightings.
	Len(ctx context.Context) int

	// Close shuts the queue; no new sightings can be enqueued.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	sightings chan Sighting
	capacity  int

	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the queue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of buffered sightings.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewInMemoryQueue creates an in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.sightings = make(chan Sighting, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a sighting without blocking the recognition path.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Sighting) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDropped()
		return false
	}

	select {
	case q.sightings <- s:
		metrics.UpdateQueueSize(len(q.sightings))
		return true
	case <-ctx.Done():
		metrics.RecordQueueDropped()
		return false
	default:
		metrics.RecordQueueDropped()
		return false
	}
}

// Dequeue returns a channel receiving sightings as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Sighting {
	out := make(chan Sighting)
	go func() {
		defer close(out)
		for s := range q.sightings {
			select {
			case out <- s:
				metrics.UpdateQueueSize(len(q.sightings))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued sightings.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.sightings)
}

// Close shuts the queue down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.sightings)
	q.closed = true
	return nil
}
