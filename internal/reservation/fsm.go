package reservation

import "aptdesk/internal/models"

// FSM holds the allowed reservation status transitions.
//
// pending  -> approved | rejected | cancelled
// approved -> completed | cancelled
// rejected, completed, cancelled are terminal.
type FSM struct {
	transitions map[models.ReservationStatus][]models.ReservationStatus
}

// NewFSM creates the reservation lifecycle FSM.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.ReservationStatus][]models.ReservationStatus{
			models.StatusPending:  {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
			models.StatusApproved: {models.StatusCompleted, models.StatusCancelled},
		},
	}
}

// CanTransition checks if a status transition is allowed.
func (f *FSM) CanTransition(from, to models.ReservationStatus) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
