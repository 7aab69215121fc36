package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facegate/facegate/internal/adapters/mq/queue"
	"github.com/facegate/facegate/internal/adapters/mq/worker"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeRecorder counts sightings handed to it.
type fakeRecorder struct {
	mu   sync.Mutex
	seen []queue.Sighting
}

func (r *fakeRecorder) Record(ctx context.Context, studentID string, ts int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, queue.Sighting{StudentID: studentID, TS: ts})
	return true
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerDrainsQueue(t *testing.T) {
	Convey("Given a running worker pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rec := &fakeRecorder{}
		pool := worker.NewPool(2, q, rec)
		pool.Start(ctx)

		Convey("When sightings are enqueued", func() {
			for i := int64(0); i < 5; i++ {
				So(q.Enqueue(ctx, queue.Sighting{StudentID: "s001", TS: i}), ShouldBeTrue)
			}

			Convey("Then every sighting reaches the recorder", func() {
				So(waitFor(func() bool { return rec.count() == 5 }, 2*time.Second), ShouldBeTrue)
			})
		})

		Convey("When the queue closes the pool stops cleanly", func() {
			So(q.Close(), ShouldBeNil)
			pool.Stop()

			Convey("Then nothing was recorded", func() {
				So(rec.count(), ShouldEqual, 0)
			})
		})
	})
}

func TestPoolDefaults(t *testing.T) {
	Convey("Given a pool built with a non-positive worker count", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		rec := &fakeRecorder{}
		pool := worker.NewPool(0, q, rec)

		Convey("Then it still drains the queue with default workers", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			So(q.Enqueue(ctx, queue.Sighting{StudentID: "s001", TS: 1}), ShouldBeTrue)
			So(waitFor(func() bool { return rec.count() == 1 }, 2*time.Second), ShouldBeTrue)

			So(q.Close(), ShouldBeNil)
			pool.Stop()
		})
	})
}
