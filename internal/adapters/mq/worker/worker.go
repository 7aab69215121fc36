// Package worker drains the sighting queue into the attendance ledger so
// recording never blocks or fails the recognition response.
package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/facegate/facegate/internal/adapters/mq/queue"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Recorder applies the attendance dedup policy for one sighting.
type Recorder interface {
	Record(ctx context.Context, studentID string, ts int64) bool
}

// Queue defines how workers receive sightings.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Sighting
}

// Worker consumes sightings and records attendance.
type Worker struct {
	queue    Queue
	recorder Recorder
	name     string

	done   chan struct{}
	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name used for logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
			w.logger = logger.Get().Named(name)
		}
	}
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, recorder Recorder, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run consumes sightings until the queue closes or ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	sightings := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sightings:
			if !ok {
				return
			}
			accepted := w.recorder.Record(ctx, s.StudentID, s.TS)
			w.logger.Debug(ctx, "processed sighting",
				logger.String("studentID", s.StudentID),
				logger.Int64("ts", s.TS),
				logger.Bool("accepted", accepted),
			)
		}
	}
}

// Pool manages a fixed set of sighting workers.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing one queue.
func NewPool(workerCount int, q Queue, recorder Recorder) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(q, recorder, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)

	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop waits for workers to drain, bounded per worker. The queue must be
// closed first so the dequeue channels terminate.
func (p *Pool) Stop() {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.logger.Warn(context.Background(), "worker shutdown timed out",
				logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
}
