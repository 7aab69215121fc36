package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/facegate/facegate/internal/adapters/hub"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSession records everything sent to it and can be told to fail.
type fakeSession struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (s *fakeSession) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("send failed")
	}
	s.messages = append(s.messages, data)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHubSubscribe(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := hub.New()

		Convey("When sessions subscribe", func() {
			id1 := h.Subscribe(&fakeSession{})
			id2 := h.Subscribe(&fakeSession{})

			Convey("Then each gets a distinct id", func() {
				So(id1, ShouldNotEqual, id2)
				So(h.Count(), ShouldEqual, 2)
			})

			Convey("And unsubscribing removes only that session", func() {
				h.Unsubscribe(id1)
				So(h.Count(), ShouldEqual, 1)
			})
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	Convey("Given a hub with three subscribers", t, func() {
		h := hub.New()
		sessions := []*fakeSession{{}, {}, {}}
		for _, s := range sessions {
			h.Subscribe(s)
		}

		Convey("When a message is broadcast", func() {
			h.Broadcast(context.Background(), map[string]string{"type": "recognized"})

			Convey("Then every subscriber receives exactly one copy", func() {
				for _, s := range sessions {
					So(s.count(), ShouldEqual, 1)
				}
			})

			Convey("And the payload is the JSON encoding of the value", func() {
				var decoded map[string]string
				So(json.Unmarshal(sessions[0].messages[0], &decoded), ShouldBeNil)
				So(decoded["type"], ShouldEqual, "recognized")
			})
		})
	})
}

func TestHubPrunesFailedSessions(t *testing.T) {
	Convey("Given a hub with one healthy and one failing subscriber", t, func() {
		h := hub.New()
		healthy := &fakeSession{}
		broken := &fakeSession{fail: true}
		h.Subscribe(healthy)
		h.Subscribe(broken)

		Convey("When a message is broadcast", func() {
			h.Broadcast(context.Background(), "ping")

			Convey("Then the failing subscriber is pruned and closed", func() {
				So(h.Count(), ShouldEqual, 1)
				So(broken.isClosed(), ShouldBeTrue)
			})

			Convey("And the healthy one keeps receiving", func() {
				h.Broadcast(context.Background(), "pong")
				So(healthy.count(), ShouldEqual, 2)
			})
		})
	})
}

func TestHubClose(t *testing.T) {
	Convey("Given a hub with subscribers", t, func() {
		h := hub.New()
		sessions := []*fakeSession{{}, {}}
		for _, s := range sessions {
			h.Subscribe(s)
		}

		Convey("When the hub closes", func() {
			h.Close()

			Convey("Then every session is torn down", func() {
				So(h.Count(), ShouldEqual, 0)
				for _, s := range sessions {
					So(s.isClosed(), ShouldBeTrue)
				}
			})
		})
	})
}
