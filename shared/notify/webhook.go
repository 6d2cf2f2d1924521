package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSender posts notifications as JSON to an external URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a sender for the given endpoint.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSender) Name() string { return "webhook" }

type webhookPayload struct {
	Event     string    `json:"event"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Send posts the message. Non-2xx responses become SendErrors so the
// dispatcher can decide whether a retry makes sense.
func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(webhookPayload{
		Event:     msg.Event,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &SendError{Code: resp.StatusCode, Message: resp.Status}
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			fmt.Sscanf(retryAfter, "%d", &se.RetryAfter)
		}
		return se
	}
	return nil
}
