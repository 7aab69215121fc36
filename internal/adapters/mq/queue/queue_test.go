package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/facegate/facegate/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with a small capacity", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When sightings fit in the buffer", func() {
			ok1 := q.Enqueue(ctx, queue.Sighting{StudentID: "s001", TS: 1})
			ok2 := q.Enqueue(ctx, queue.Sighting{StudentID: "s002", TS: 2})

			Convey("Then enqueue succeeds and the length grows", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And a third sighting is dropped, not blocked", func() {
				So(q.Enqueue(ctx, queue.Sighting{StudentID: "s003", TS: 3}), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue refuses new sightings", func() {
				So(q.Enqueue(ctx, queue.Sighting{StudentID: "s001", TS: 1}), ShouldBeFalse)
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})

	Convey("Given a queue with buffered sightings", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		So(q.Enqueue(ctx, queue.Sighting{StudentID: "s001", TS: 1}), ShouldBeTrue)
		So(q.Enqueue(ctx, queue.Sighting{StudentID: "s002", TS: 2}), ShouldBeTrue)

		Convey("When a consumer dequeues", func() {
			out := q.Dequeue(ctx)

			first := <-out
			second := <-out

			Convey("Then sightings arrive in order", func() {
				So(first.StudentID, ShouldEqual, "s001")
				So(second.StudentID, ShouldEqual, "s002")
			})

			Convey("And the channel closes when the queue closes", func() {
				So(q.Close(), ShouldBeNil)
				select {
				case _, open := <-out:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					So("timed out waiting for close", ShouldBeEmpty)
				}
			})
		})
	})
}
