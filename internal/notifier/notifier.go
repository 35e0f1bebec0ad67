// Package notifier delivers human-readable operator alerts to a chat
// webhook. Delivery is best-effort; callers never fail on notifier errors.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"authgate/internal/events"
)

// Notifier delivers one human-readable alert message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Webhook posts messages to a chat webhook URL (Discord-compatible payload).
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a webhook notifier for url. Returns nil when url is
// empty (alerting disabled).
func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the message as {"content": message}.
func (w *Webhook) Notify(ctx context.Context, message string) error {
	if w == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Emitter adapts a Notifier into an events.Emitter for deployments without a
// Kafka pipeline: events are formatted and delivered inline.
type Emitter struct {
	N Notifier
}

// Emit formats the event and delivers it through the notifier.
func (e Emitter) Emit(ctx context.Context, event *events.AuthEvent) error {
	if e.N == nil || event == nil {
		return nil
	}
	return e.N.Notify(ctx, event.Message())
}
