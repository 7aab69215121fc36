// Package dispatch delivers recognition events to the attendance webhook,
// gated by a per-label cooldown.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	DefaultCooldown    = 5 * time.Second
	defaultHTTPTimeout = 10 * time.Second
	maxReportBody      = 4 << 10 // response body kept in reports
)

// Report statuses and skip reasons.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"

	ReasonCooldown = "cooldown_active"
	ReasonDisabled = "webhook_disabled"
)

// Report describes the outcome of one dispatch attempt. Failures are
// reported here, never raised to the caller.
type Report struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Message    string `json:"message,omitempty"`
	Remaining  int    `json:"remaining_seconds,omitempty"`
}

// Dispatcher sends webhook events at most once per label per cooldown
// window. The cooldown check-and-set is atomic; the network call happens
// outside the lock so a slow webhook cannot block other labels.
type Dispatcher struct {
	webhookURL string
	token      string
	cooldown   time.Duration
	client     *http.Client
	now        func() time.Time
	logger     logger.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New creates a Dispatcher with configuration options. An empty webhook URL
// disables dispatch entirely.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cooldown: DefaultCooldown,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = logger.Get().Named("dispatch")
	}

	return d
}

// Enabled reports whether a webhook endpoint is configured.
func (d *Dispatcher) Enabled() bool { return d.webhookURL != "" }

// MaybeSend dispatches payload for label unless the webhook is disabled or
// the label is still inside its cooldown window. Best-effort: transport and
// HTTP failures are recorded in the report and logged, never returned.
func (d *Dispatcher) MaybeSend(ctx context.Context, label string, payload any) Report {
	if !d.Enabled() {
		metrics.RecordDispatchSkipped()
		return Report{Status: StatusSkipped, Reason: ReasonDisabled}
	}

	if report, ok := d.pass(label); !ok {
		metrics.RecordDispatchSkipped()
		return report
	}

	return d.send(ctx, label, payload)
}

// pass performs the atomic cooldown check-and-set. Returns ok=false with a
// skip report when the label is still cooling down.
func (d *Dispatcher) pass(label string) (Report, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastSent[label]; ok {
		if elapsed := now.Sub(last); elapsed < d.cooldown {
			remaining := int((d.cooldown - elapsed).Seconds())
			return Report{Status: StatusSkipped, Reason: ReasonCooldown, Remaining: remaining}, false
		}
	}
	d.lastSent[label] = now
	return Report{}, true
}

// send issues the outbound POST. Called outside the cooldown lock.
func (d *Dispatcher) send(ctx context.Context, label string, payload any) Report {
	body, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordDispatchFailed()
		return Report{Status: StatusFailed, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		metrics.RecordDispatchFailed()
		return Report{Status: StatusFailed, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.RecordDispatchFailed()
		d.logger.Warn(ctx, "webhook dispatch failed",
			logger.String("label", label), logger.Error(err))
		return Report{Status: StatusFailed, Message: err.Error()}
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxReportBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordDispatchFailed()
		d.logger.Warn(ctx, "webhook rejected event",
			logger.String("label", label), logger.Int("status", resp.StatusCode))
		return Report{Status: StatusFailed, HTTPStatus: resp.StatusCode, Message: string(msg)}
	}

	metrics.RecordDispatchSent()
	return Report{Status: StatusSent, HTTPStatus: resp.StatusCode, Message: string(msg)}
}
