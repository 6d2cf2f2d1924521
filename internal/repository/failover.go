package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long to wait before probing a downed primary.
const recoveryInterval = time.Minute

// FailoverSessionRepository serves sessions from a primary (redis) and
// falls back to a durable secondary (sqlite) when the primary is down.
// After a failure the primary is probed again at most once per
// recoveryInterval.
type FailoverSessionRepository struct {
	primary  SessionRepository
	fallback SessionRepository
	logger   *zerolog.Logger

	isDown atomic.Bool
	// lastCheck holds the UnixNano of the last primary attempt; atomic
	// because request goroutines read and write it concurrently.
	lastCheck atomic.Int64
}

// NewFailoverSessionRepository wires a primary and fallback repository.
func NewFailoverSessionRepository(primary, fallback SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverSessionRepository) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	if time.Since(time.Unix(0, f.lastCheck.Load())) >= recoveryInterval {
		// Time to probe the primary again.
		return true
	}
	return false
}

func (f *FailoverSessionRepository) markResult(err error) {
	f.lastCheck.Store(time.Now().UnixNano())
	wasDown := f.isDown.Load()
	if err != nil {
		f.isDown.Store(true)
		if !wasDown {
			f.logger.Warn().Err(err).Msg("session primary down, using fallback")
		}
		return
	}
	if wasDown {
		f.logger.Info().Msg("session primary recovered")
	}
	f.isDown.Store(false)
}

func (f *FailoverSessionRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	if f.usePrimary() {
		err := f.primary.CreateSession(ctx, token, userID, expiresAt)
		f.markResult(err)
		if err == nil {
			// Mirror into the fallback so sessions survive a later
			// primary outage.
			if ferr := f.fallback.CreateSession(ctx, token, userID, expiresAt); ferr != nil {
				f.logger.Error().Err(ferr).Msg("failed to mirror session to fallback")
			}
			return nil
		}
	}
	return f.fallback.CreateSession(ctx, token, userID, expiresAt)
}

func (f *FailoverSessionRepository) GetSession(ctx context.Context, token string) (int64, error) {
	if f.usePrimary() {
		userID, err := f.primary.GetSession(ctx, token)
		if err == nil || errors.Is(err, ErrSessionNotFound) {
			f.markResult(nil)
			if err == nil {
				return userID, nil
			}
			// Unknown to the primary; the fallback may still hold it
			// after a redis restart.
			return f.fallback.GetSession(ctx, token)
		}
		f.markResult(err)
	}
	return f.fallback.GetSession(ctx, token)
}

func (f *FailoverSessionRepository) DeleteSession(ctx context.Context, token string) error {
	var primaryErr error
	if f.usePrimary() {
		primaryErr = f.primary.DeleteSession(ctx, token)
		f.markResult(primaryErr)
	}
	// Always delete from the fallback so revocation sticks.
	fallbackErr := f.fallback.DeleteSession(ctx, token)
	if primaryErr != nil {
		return primaryErr
	}
	return fallbackErr
}
