package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"aptdesk/internal/models"
	"aptdesk/internal/reservation"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	elapsed []models.Reservation
	err     error
}

func (f *fakeStore) ElapsedApproved(ctx context.Context, before time.Time) ([]models.Reservation, error) {
	return f.elapsed, f.err
}

type fakeCompleter struct {
	completed []int64
	errs      map[int64]error
}

func (f *fakeCompleter) Complete(ctx context.Context, id int64) (*models.Reservation, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	f.completed = append(f.completed, id)
	return &models.Reservation{ID: id, Status: models.StatusCompleted}, nil
}

func TestSweepCompletesElapsed(t *testing.T) {
	store := &fakeStore{elapsed: []models.Reservation{{ID: 1}, {ID: 2}, {ID: 3}}}
	svc := &fakeCompleter{errs: map[int64]error{}}

	s := New(store, svc, time.Minute, zerolog.Nop())
	s.Sweep(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, svc.completed)
}

func TestSweepSkipsConcurrentlyCancelled(t *testing.T) {
	// A reservation cancelled between listing and completion loses the
	// compare-and-set; the sweeper must move on.
	store := &fakeStore{elapsed: []models.Reservation{{ID: 1}, {ID: 2}}}
	svc := &fakeCompleter{errs: map[int64]error{
		1: &reservation.StateTransitionError{
			ReservationID: 1,
			From:          models.StatusCancelled,
			To:            models.StatusCompleted,
		},
	}}

	s := New(store, svc, time.Minute, zerolog.Nop())
	s.Sweep(context.Background())

	assert.Equal(t, []int64{2}, svc.completed)
}

func TestSweepToleratesStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("disk gone")}
	svc := &fakeCompleter{}

	s := New(store, svc, time.Minute, zerolog.Nop())
	s.Sweep(context.Background())

	assert.Empty(t, svc.completed)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	svc := &fakeCompleter{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(store, svc, 10*time.Millisecond, zerolog.Nop()).Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
