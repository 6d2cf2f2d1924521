package reservation

import (
	"context"
	"time"

	"aptdesk/internal/models"
)

// Store is the slice of the reservation store the admission logic needs.
type Store interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ActiveByResource(ctx context.Context, rt models.ResourceType, excludeID int64) ([]models.Reservation, error)
	ActiveByUnit(ctx context.Context, unitID string) ([]models.Reservation, error)
	InsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatusIf(ctx context.Context, id int64, from, to models.ReservationStatus, adminComment string) error
}

// ConflictResult is the outcome of a time-conflict check.
type ConflictResult struct {
	HasConflict bool                 `json:"has_conflict"`
	Conflicting []models.Reservation `json:"conflicting_reservations"`
}

// UnitResult is the outcome of a unit-cardinality check.
type UnitResult struct {
	HasExisting bool                 `json:"has_existing_reservation"`
	Existing    []models.Reservation `json:"existing_reservations"`
}

// CheckConflicts tests a candidate window against every active
// reservation of the same resource type. excludeID skips one reservation,
// used when re-checking an edit. Read-only.
func (s *Service) CheckConflicts(
	ctx context.Context,
	rt models.ResourceType,
	start, end time.Time,
	excludeID int64,
) (*ConflictResult, error) {
	if !models.ValidResourceType(rt) {
		return nil, &ValidationError{Field: "resource_type", Message: "unknown resource type"}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Field: "time_range", Message: "start_time must be before end_time"}
	}

	active, err := s.store.ActiveByResource(ctx, rt, excludeID)
	if err != nil {
		return nil, &StoreError{Op: "query active by resource", Err: err}
	}

	result := &ConflictResult{}
	for _, r := range active {
		if r.Overlaps(start, end) {
			result.Conflicting = append(result.Conflicting, r)
		}
	}
	result.HasConflict = len(result.Conflicting) > 0
	return result, nil
}

// CheckUnit reports whether the unit already holds an active reservation,
// across all resource types. Read-only.
func (s *Service) CheckUnit(ctx context.Context, unitID string) (*UnitResult, error) {
	if unitID == "" {
		return nil, &ValidationError{Field: "unit_id", Message: "unit_id is required"}
	}

	existing, err := s.store.ActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, &StoreError{Op: "query active by unit", Err: err}
	}

	return &UnitResult{
		HasExisting: len(existing) > 0,
		Existing:    existing,
	}, nil
}
