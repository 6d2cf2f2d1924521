package reservation

import (
	"testing"

	"aptdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFSM_Transitions(t *testing.T) {
	fsm := NewFSM()

	allowed := []struct {
		from, to models.ReservationStatus
	}{
		{models.StatusPending, models.StatusApproved},
		{models.StatusPending, models.StatusRejected},
		{models.StatusPending, models.StatusCancelled},
		{models.StatusApproved, models.StatusCompleted},
		{models.StatusApproved, models.StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, fsm.CanTransition(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	denied := []struct {
		from, to models.ReservationStatus
	}{
		{models.StatusApproved, models.StatusApproved},
		{models.StatusApproved, models.StatusPending},
		{models.StatusApproved, models.StatusRejected},
		{models.StatusRejected, models.StatusApproved},
		{models.StatusRejected, models.StatusCancelled},
		{models.StatusCompleted, models.StatusCancelled},
		{models.StatusCancelled, models.StatusPending},
		{models.StatusCancelled, models.StatusApproved},
		{models.StatusCompleted, models.StatusCompleted},
	}
	for _, tr := range denied {
		assert.False(t, fsm.CanTransition(tr.from, tr.to), "%s -> %s should be denied", tr.from, tr.to)
	}
}
