// Package sweeper finishes approved reservations once their window has
// passed.
package sweeper

import (
	"context"
	"time"

	"aptdesk/internal/models"
	"aptdesk/internal/reservation"

	"github.com/rs/zerolog"
)

// Store lists reservations ready for completion.
type Store interface {
	ElapsedApproved(ctx context.Context, before time.Time) ([]models.Reservation, error)
}

// Completer applies the approved to completed transition.
type Completer interface {
	Complete(ctx context.Context, id int64) (*models.Reservation, error)
}

// Sweeper periodically marks elapsed approved reservations completed.
type Sweeper struct {
	store    Store
	svc      Completer
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a sweeper with the given poll interval.
func New(store Store, svc Completer, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		store:    store,
		svc:      svc,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep completes every approved reservation whose end time has passed.
// Races with a concurrent cancel lose the compare-and-set and are
// skipped quietly.
func (s *Sweeper) Sweep(ctx context.Context) {
	elapsed, err := s.store.ElapsedApproved(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list elapsed reservations")
		return
	}
	if len(elapsed) == 0 {
		return
	}

	completed := 0
	for _, r := range elapsed {
		if _, err := s.svc.Complete(ctx, r.ID); err != nil {
			if _, stale := reservation.IsStateTransition(err); stale {
				continue
			}
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).
				Msg("failed to complete reservation")
			continue
		}
		completed++
	}

	s.logger.Info().Int("completed", completed).Int("candidates", len(elapsed)).
		Msg("sweep finished")
}
