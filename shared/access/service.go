// Package access provides access control for residents and admins.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BlockedUnit represents a blocklisted apartment unit.
type BlockedUnit struct {
	UnitID    string    `json:"unit_id"`
	BlockedAt time.Time `json:"blocked_at"`
	Reason    string    `json:"reason,omitempty"`
	BlockedBy int64     `json:"blocked_by"`
}

// BlocklistRepository provides access to the unit blocklist.
type BlocklistRepository interface {
	IsUnitBlocked(ctx context.Context, unitID string) (bool, error)
	GetBlockedUnit(ctx context.Context, unitID string) (*BlockedUnit, error)
	BlockUnit(ctx context.Context, unitID, reason string, blockedBy int64) error
	UnblockUnit(ctx context.Context, unitID string) error
	ListBlockedUnits(ctx context.Context) ([]BlockedUnit, error)
}

// AdminRepository answers admin-role lookups.
type AdminRepository interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// Service implements access checks for the API layer.
type Service struct {
	blocklist BlocklistRepository
	admins    AdminRepository
	logger    zerolog.Logger
}

// NewService creates a new access control service.
func NewService(blocklist BlocklistRepository, admins AdminRepository, logger zerolog.Logger) *Service {
	return &Service{
		blocklist: blocklist,
		admins:    admins,
		logger:    logger.With().Str("component", "access").Logger(),
	}
}

// BlockUnit adds a unit to the blocklist. Only admins may block.
func (s *Service) BlockUnit(ctx context.Context, unitID, reason string, blockedBy int64) error {
	isAdmin, err := s.admins.IsAdmin(ctx, blockedBy)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !isAdmin {
		return fmt.Errorf("user %d is not an admin", blockedBy)
	}

	if err := s.blocklist.BlockUnit(ctx, unitID, reason, blockedBy); err != nil {
		return err
	}

	s.logger.Info().
		Str("unit_id", unitID).
		Int64("blocked_by", blockedBy).
		Str("reason", reason).
		Msg("unit blocked")

	return nil
}

// UnblockUnit removes a unit from the blocklist.
func (s *Service) UnblockUnit(ctx context.Context, unitID string) error {
	if err := s.blocklist.UnblockUnit(ctx, unitID); err != nil {
		return err
	}

	s.logger.Info().Str("unit_id", unitID).Msg("unit unblocked")
	return nil
}

// ListBlockedUnits returns all blocked units.
func (s *Service) ListBlockedUnits(ctx context.Context) ([]BlockedUnit, error) {
	return s.blocklist.ListBlockedUnits(ctx)
}

// CanSubmit checks whether a unit may submit reservation requests.
// Returns false with a reason when the unit is blocked.
func (s *Service) CanSubmit(ctx context.Context, unitID string) (bool, string, error) {
	blocked, err := s.blocklist.GetBlockedUnit(ctx, unitID)
	if err != nil {
		return false, "", fmt.Errorf("checking blocklist: %w", err)
	}
	if blocked != nil {
		reason := "unit is blocked from making reservations"
		if blocked.Reason != "" {
			reason = fmt.Sprintf("unit is blocked: %s", blocked.Reason)
		}
		return false, reason, nil
	}
	return true, "", nil
}

// CanManage checks whether a user may perform admin actions.
func (s *Service) CanManage(ctx context.Context, userID int64) (bool, error) {
	return s.admins.IsAdmin(ctx, userID)
}

// Middleware refuses submission for blocked units.
func (s *Service) Middleware(ctx context.Context, unitID string) error {
	canSubmit, reason, err := s.CanSubmit(ctx, unitID)
	if err != nil {
		return err
	}
	if !canSubmit {
		return &AccessDeniedError{Reason: reason}
	}
	return nil
}

// AdminMiddleware refuses non-admin callers.
func (s *Service) AdminMiddleware(ctx context.Context, userID int64) error {
	canManage, err := s.CanManage(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !canManage {
		return &AccessDeniedError{Reason: "this action requires admin rights"}
	}
	return nil
}

// AccessDeniedError is returned when access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var ae *AccessDeniedError
	return errors.As(err, &ae)
}
