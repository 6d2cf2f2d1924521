// Package notify fans reservation lifecycle events out to admins over
// Telegram and webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Event     string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Sender delivers messages over one channel (Telegram, webhook, ...).
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SendError is a delivery failure with channel-level detail. RetryAfter
// is in seconds and set when the channel asked us to back off.
type SendError struct {
	Code       int
	Message    string
	RetryAfter int
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send error %d: %s", e.Code, e.Message)
}

// IsSendError checks if the error is a SendError.
func IsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Permanent reports whether the failure is not worth retrying.
func (e *SendError) Permanent() bool {
	return e.Code == 400 || e.Code == 403 || e.Code == 404
}
