package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types the service knows how to render. They match what the
// reservation service publishes.
const (
	eventCreated   = "reservation.created"
	eventDecided   = "reservation.decided"
	eventCancelled = "reservation.cancelled"
	eventCompleted = "reservation.completed"
)

// reservationPayload is the subset of the event payload the renderer
// needs. Kept local so this package stays decoupled from the domain
// model.
type reservationPayload struct {
	ID           int64     `json:"id"`
	UnitID       string    `json:"unit_id"`
	ResourceType string    `json:"resource_type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	AdminComment string    `json:"admin_comment"`
}

// Config tunes the notification service.
type Config struct {
	// QueueSize bounds the in-memory queue. Messages are dropped with a
	// log line when it is full. Default: 256.
	QueueSize int
}

// Service renders reservation events into messages and hands them to
// the dispatcher from a background worker.
type Service struct {
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     zerolog.Logger

	queue  chan Message
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewService creates the notification service.
func NewService(dispatcher *Dispatcher, cfg Config, metrics *Metrics, logger zerolog.Logger) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Service{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.With().Str("component", "notify").Logger(),
		queue:      make(chan Message, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker()

	s.logger.Info().Msg("notification service started")
}

// Stop drains the queue and stops the worker.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("notification service stopped")
}

// HandleEvent renders and enqueues an event. Safe to call from the
// publishing goroutine; delivery happens on the worker.
func (s *Service) HandleEvent(eventType string, payload []byte) error {
	msg, ok := s.render(eventType, payload)
	if !ok {
		return nil
	}

	select {
	case s.queue <- msg:
		s.metrics.SetQueueSize(len(s.queue))
	default:
		s.logger.Warn().Str("event", eventType).Msg("notification queue full, dropping")
	}
	return nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.queue:
			s.metrics.SetQueueSize(len(s.queue))
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			s.dispatcher.Dispatch(ctx, msg)
			cancel()
		case <-s.stopCh:
			// Drain whatever is left before shutting down.
			for {
				select {
				case msg := <-s.queue:
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					s.dispatcher.Dispatch(ctx, msg)
					cancel()
				default:
					return
				}
			}
		}
	}
}

func (s *Service) render(eventType string, payload []byte) (Message, bool) {
	var r reservationPayload
	if err := json.Unmarshal(payload, &r); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("undecodable event payload")
		return Message{}, false
	}

	window := fmt.Sprintf("%s to %s",
		r.StartTime.Format("Mon 02 Jan 15:04"),
		r.EndTime.Format("15:04"))

	var subject, body string
	switch eventType {
	case eventCreated:
		subject = fmt.Sprintf("New %s reservation #%d", r.ResourceType, r.ID)
		body = fmt.Sprintf("Unit %s requested the %s, %s. Waiting for review.",
			r.UnitID, r.ResourceType, window)
	case eventDecided:
		subject = fmt.Sprintf("Reservation #%d %s", r.ID, r.Status)
		body = fmt.Sprintf("Unit %s, %s, %s.", r.UnitID, r.ResourceType, window)
		if r.AdminComment != "" {
			body += "\nComment: " + r.AdminComment
		}
	case eventCancelled:
		subject = fmt.Sprintf("Reservation #%d cancelled", r.ID)
		body = fmt.Sprintf("Unit %s released the %s, %s.", r.UnitID, r.ResourceType, window)
	case eventCompleted:
		// Routine bookkeeping, not worth pinging admins about.
		return Message{}, false
	default:
		return Message{}, false
	}

	return Message{
		Event:     strings.TrimPrefix(eventType, "reservation."),
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}, true
}
