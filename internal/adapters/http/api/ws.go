// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/facegate/facegate/internal/adapters/hub"
	"github.com/facegate/facegate/pkg/logger"
)

// WSHandler upgrades live subscription requests onto the broadcast hub.
type WSHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(deps Dependencies) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Subscribers are trusted tooling on the same network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Get().Named("ws"),
	}
}

// HandleSubscribe handles GET /ws/recognitions requests. The connection
// receives every broadcast message; inbound frames are read and discarded
// so client pings keep the connection alive.
func (h *WSHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	sess := hub.NewWSSession(conn)
	id := h.deps.Subscribe(sess)
	h.logger.Info(r.Context(), "subscriber connected", logger.String("id", id))

	defer func() {
		h.deps.Unsubscribe(id)
		_ = sess.Close()
		h.logger.Info(r.Context(), "subscriber disconnected", logger.String("id", id))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
