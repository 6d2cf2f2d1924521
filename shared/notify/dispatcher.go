package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig controls delivery retries.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default backoff schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Dispatcher delivers messages to every configured channel with rate
// limiting and retries.
type Dispatcher struct {
	senders []Sender
	limiter *RateLimiter
	retry   RetryConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewDispatcher wires senders behind a shared rate limiter.
func NewDispatcher(
	senders []Sender,
	limiterCfg RateLimiterConfig,
	retry RetryConfig,
	metrics *Metrics,
	logger zerolog.Logger,
) *Dispatcher {
	if retry.MaxRetries == 0 && len(retry.RetryDelays) == 0 {
		retry = DefaultRetryConfig()
	}
	return &Dispatcher{
		senders: senders,
		limiter: NewRateLimiter(limiterCfg),
		retry:   retry,
		metrics: metrics,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Dispatch delivers the message on every channel. A channel failing does
// not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	for _, sender := range d.senders {
		if err := d.sendWithRetry(ctx, sender, msg); err != nil {
			d.metrics.IncSent(sender.Name(), "failed")
			d.logger.Error().Err(err).
				Str("channel", sender.Name()).
				Str("event", msg.Event).
				Msg("notification delivery failed")
			continue
		}
		d.metrics.IncSent(sender.Name(), "sent")
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sender Sender, msg Message) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		start := time.Now()
		err := sender.Send(ctx, msg)
		d.metrics.ObserveSendDuration(time.Since(start).Seconds())
		if err == nil {
			return nil
		}
		lastErr = err

		delay := d.delayFor(attempt)
		if se, ok := IsSendError(err); ok {
			if se.Permanent() {
				return err
			}
			if se.RetryAfter > 0 {
				delay = time.Duration(se.RetryAfter) * time.Second
			}
		}

		if attempt == d.retry.MaxRetries {
			break
		}

		d.metrics.IncRetries()
		d.logger.Warn().Err(err).
			Str("channel", sender.Name()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying notification")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (d *Dispatcher) delayFor(attempt int) time.Duration {
	if attempt < len(d.retry.RetryDelays) {
		return d.retry.RetryDelays[attempt]
	}
	if n := len(d.retry.RetryDelays); n > 0 {
		return d.retry.RetryDelays[n-1]
	}
	return time.Second
}
