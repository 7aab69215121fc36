// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/facegate/facegate/pkg/logger"
)

// MockWebhookHandler echoes dispatched events for local development.
type MockWebhookHandler struct {
	logger logger.Logger
}

// NewMockWebhookHandler creates a new mock webhook handler.
func NewMockWebhookHandler() *MockWebhookHandler {
	return &MockWebhookHandler{logger: logger.Get().Named("mock-webhook")}
}

// HandleWebhook handles POST /mock/webhook requests. It logs the payload
// and acknowledges, so the dispatcher can be exercised without an
// external receiver.
func (h *MockWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.mock_webhook"

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	h.logger.Info(r.Context(), "webhook received",
		logger.Any("payload", payload),
		logger.String("authorization", r.Header.Get("Authorization")),
	)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
