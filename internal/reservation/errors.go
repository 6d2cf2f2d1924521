package reservation

import (
	"errors"
	"fmt"

	"aptdesk/internal/models"
)

// ValidationError reports a malformed reservation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation checks if the error is a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// UnitLimitError reports that the requesting unit already holds an active
// reservation. Existing carries the blocking records for user feedback.
type UnitLimitError struct {
	UnitID   string
	Existing []models.Reservation
}

func (e *UnitLimitError) Error() string {
	return fmt.Sprintf("unit %s already holds %d active reservation(s)", e.UnitID, len(e.Existing))
}

// IsUnitLimit checks if the error is a UnitLimitError.
func IsUnitLimit(err error) (*UnitLimitError, bool) {
	var ue *UnitLimitError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ConflictError reports a time-window overlap with existing active
// reservations of the same resource type. Conflicting carries every
// overlapping record, not just the first.
type ConflictError struct {
	ResourceType models.ResourceType
	Conflicting  []models.Reservation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time window conflicts with %d %s reservation(s)", len(e.Conflicting), e.ResourceType)
}

// IsConflict checks if the error is a ConflictError.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// StateTransitionError reports an action attempted from a status that
// does not permit it.
type StateTransitionError struct {
	ReservationID int64
	From          models.ReservationStatus
	To            models.ReservationStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("reservation %d: cannot transition from %s to %s", e.ReservationID, e.From, e.To)
}

// IsStateTransition checks if the error is a StateTransitionError.
func IsStateTransition(err error) (*StateTransitionError, bool) {
	var se *StateTransitionError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StoreError reports that the reservation store could not be reached
// during a check or write.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("reservation store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreUnavailable checks if the error is a StoreError.
func IsStoreUnavailable(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
