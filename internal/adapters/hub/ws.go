package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsSession adapts a gorilla websocket connection to the Session interface.
// Gorilla permits at most one concurrent writer, so sends are serialized.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSSession wraps a websocket connection as a hub Session.
func NewWSSession(conn *websocket.Conn) Session {
	return &wsSession{conn: conn}
}

// Send writes one text message, honoring the ctx deadline.
func (s *wsSession) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSendTimeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the underlying connection.
func (s *wsSession) Close() error {
	return s.conn.Close()
}
