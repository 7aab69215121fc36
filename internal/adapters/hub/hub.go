// Package hub fans recognition events out to live subscribers, best-effort,
// pruning any subscriber whose send fails.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// defaultSendTimeout bounds one subscriber send so a slow peer cannot
// stall the rest of the broadcast pass.
const defaultSendTimeout = 2 * time.Second

// Session is one live subscriber connection.
type Session interface {
	// Send delivers one serialized message. Implementations must honor
	// ctx for deadline/cancellation.
	Send(ctx context.Context, data []byte) error

	// Close tears down the connection.
	Close() error
}

// Hub maintains the mutable subscriber set. Membership changes only via
// Subscribe/Unsubscribe and the prune pass after a failed send.
type Hub struct {
	sendTimeout time.Duration
	logger      logger.Logger

	mu       sync.Mutex
	sessions map[string]Session
}

// New creates a Hub with configuration options.
func New(opts ...Option) *Hub {
	h := &Hub{
		sendTimeout: defaultSendTimeout,
		sessions:    make(map[string]Session),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}

	return h
}

// Subscribe adds a session and returns its membership id.
func (h *Hub) Subscribe(s Session) string {
	id := uuid.NewString()

	h.mu.Lock()
	h.sessions[id] = s
	n := len(h.sessions)
	h.mu.Unlock()

	metrics.UpdateBroadcastSubscribers(n)
	return id
}

// Unsubscribe removes a session without closing it; the connection
// lifecycle owns the close.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()

	metrics.UpdateBroadcastSubscribers(n)
}

// Count returns the current number of subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Broadcast serializes v once and attempts delivery to every current
// subscriber, at most once each. Subscribers whose send fails are removed
// and closed after the pass; delivery order is unspecified.
func (h *Hub) Broadcast(ctx context.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(ctx, "failed to encode broadcast message", logger.Error(err))
		return
	}

	h.mu.Lock()
	targets := make(map[string]Session, len(h.sessions))
	for id, s := range h.sessions {
		targets[id] = s
	}
	h.mu.Unlock()

	var dead []string
	for id, s := range targets {
		sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
		err := s.Send(sendCtx, data)
		cancel()
		if err != nil {
			metrics.RecordBroadcastSendFailure()
			h.logger.Debug(ctx, "pruning subscriber after send failure",
				logger.String("id", id), logger.Error(err))
			dead = append(dead, id)
		}
	}

	for _, id := range dead {
		h.mu.Lock()
		s, ok := h.sessions[id]
		if ok {
			delete(h.sessions, id)
		}
		n := len(h.sessions)
		h.mu.Unlock()

		metrics.UpdateBroadcastSubscribers(n)
		if ok {
			_ = s.Close()
		}
	}
}

// Close tears down all sessions, e.g. on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]Session)
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	metrics.UpdateBroadcastSubscribers(0)
}
