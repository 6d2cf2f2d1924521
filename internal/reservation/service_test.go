package reservation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"aptdesk/internal/database"
	"aptdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockStore) ActiveByResource(ctx context.Context, rt models.ResourceType, excludeID int64) ([]models.Reservation, error) {
	args := m.Called(ctx, rt, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) ActiveByUnit(ctx context.Context, unitID string) ([]models.Reservation, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) InsertReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	if args.Error(0) == nil {
		r.ID = 1
	}
	return args.Error(0)
}

func (m *mockStore) UpdateReservationStatusIf(ctx context.Context, id int64, from, to models.ReservationStatus, adminComment string) error {
	return m.Called(ctx, id, from, to, adminComment).Error(0)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func day(h int) time.Time {
	return time.Date(2026, 4, 6, h, 0, 0, 0, time.UTC)
}

func newTestService(store Store, bus EventPublisher, failOpen bool) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(store, bus, failOpen, &logger)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	req := Request{
		ResourceType: models.ResourceElevator,
		StartTime:    day(9),
		EndTime:      day(12),
		UnitID:       "unitA",
		UserID:       7,
	}

	t.Run("Admitted", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(store, bus, false)

		store.On("ActiveByUnit", ctx, "unitA").Return([]models.Reservation{}, nil).Once()
		store.On("ActiveByResource", ctx, models.ResourceElevator, int64(0)).Return([]models.Reservation{}, nil).Once()
		store.On("InsertReservation", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", EventCreated, mock.Anything).Return(nil).Once()

		r, err := svc.Submit(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, r.Status)
		assert.Equal(t, "unitA", r.UnitID)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("TimeConflict", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		blocking := models.Reservation{
			ID: 42, UnitID: "unitB", ResourceType: models.ResourceElevator,
			StartTime: day(11), EndTime: day(13), Status: models.StatusApproved,
		}
		store.On("ActiveByUnit", ctx, "unitA").Return([]models.Reservation{}, nil).Once()
		store.On("ActiveByResource", ctx, models.ResourceElevator, int64(0)).
			Return([]models.Reservation{blocking}, nil).Once()

		_, err := svc.Submit(ctx, req)
		ce, ok := IsConflict(err)
		assert.True(t, ok)
		assert.Len(t, ce.Conflicting, 1)
		assert.Equal(t, int64(42), ce.Conflicting[0].ID)
		store.AssertNotCalled(t, "InsertReservation", mock.Anything, mock.Anything)
	})

	t.Run("UnitLimitAcrossResourceTypes", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		// unitA already holds a parking reservation; an elevator request
		// is still refused.
		existing := models.Reservation{
			ID: 5, UnitID: "unitA", ResourceType: models.ResourceParking,
			StartTime: day(14), EndTime: day(16), Status: models.StatusPending,
		}
		store.On("ActiveByUnit", ctx, "unitA").Return([]models.Reservation{existing}, nil).Once()

		_, err := svc.Submit(ctx, req)
		ue, ok := IsUnitLimit(err)
		assert.True(t, ok)
		assert.Equal(t, "unitA", ue.UnitID)
		assert.Len(t, ue.Existing, 1)
		store.AssertNotCalled(t, "ActiveByResource", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BoundaryTouchingAdmitted", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		// Existing 09:00-12:00; candidate 12:00-14:00 does not conflict.
		existing := models.Reservation{
			ID: 9, UnitID: "unitA", ResourceType: models.ResourceElevator,
			StartTime: day(9), EndTime: day(12), Status: models.StatusPending,
		}
		store.On("ActiveByUnit", ctx, "unitB").Return([]models.Reservation{}, nil).Once()
		store.On("ActiveByResource", ctx, models.ResourceElevator, int64(0)).
			Return([]models.Reservation{existing}, nil).Once()
		store.On("InsertReservation", ctx, mock.Anything).Return(nil).Once()

		r, err := svc.Submit(ctx, Request{
			ResourceType: models.ResourceElevator,
			StartTime:    day(12),
			EndTime:      day(14),
			UnitID:       "unitB",
			UserID:       8,
		})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, r.Status)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := newTestService(new(mockStore), nil, false)

		cases := []Request{
			{ResourceType: "rooftop", StartTime: day(9), EndTime: day(12), UnitID: "unitA"},
			{ResourceType: models.ResourceElevator, StartTime: day(12), EndTime: day(9), UnitID: "unitA"},
			{ResourceType: models.ResourceElevator, StartTime: day(9), EndTime: day(9), UnitID: "unitA"},
			{ResourceType: models.ResourceElevator, StartTime: day(9), EndTime: day(12)},
			{ResourceType: models.ResourceElevator, UnitID: "unitA"},
		}
		for _, c := range cases {
			_, err := svc.Submit(ctx, c)
			_, ok := IsValidation(err)
			assert.True(t, ok, "expected validation error for %+v", c)
		}
	})

	t.Run("Limits", func(t *testing.T) {
		svc := newTestService(new(mockStore), nil, false)
		svc.Limits = Limits{MaxWindow: 4 * time.Hour, MaxAdvance: 30 * 24 * time.Hour}

		start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

		_, err := svc.Submit(ctx, Request{
			ResourceType: models.ResourceElevator,
			StartTime:    start, EndTime: start.Add(6 * time.Hour),
			UnitID: "unitA",
		})
		ve, ok := IsValidation(err)
		assert.True(t, ok)
		assert.Equal(t, "time_range", ve.Field)

		farStart := time.Now().Add(45 * 24 * time.Hour)
		_, err = svc.Submit(ctx, Request{
			ResourceType: models.ResourceElevator,
			StartTime:    farStart, EndTime: farStart.Add(2 * time.Hour),
			UnitID: "unitA",
		})
		ve, ok = IsValidation(err)
		assert.True(t, ok)
		assert.Equal(t, "start_time", ve.Field)
	})

	t.Run("StoreDownFailClosed", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("ActiveByUnit", ctx, "unitA").Return(nil, errors.New("db down")).Once()

		_, err := svc.Submit(ctx, req)
		_, ok := IsStoreUnavailable(err)
		assert.True(t, ok)
		store.AssertNotCalled(t, "InsertReservation", mock.Anything, mock.Anything)
	})

	t.Run("StoreDownFailOpen", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, true)

		store.On("ActiveByUnit", ctx, "unitA").Return(nil, errors.New("db down")).Once()
		store.On("ActiveByResource", ctx, models.ResourceElevator, int64(0)).
			Return(nil, errors.New("db down")).Once()
		store.On("InsertReservation", ctx, mock.Anything).Return(nil).Once()

		r, err := svc.Submit(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, r.Status)
	})

	t.Run("IndexCatchesRacingUnit", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		racing := models.Reservation{ID: 77, UnitID: "unitA", Status: models.StatusPending}
		store.On("ActiveByUnit", ctx, "unitA").Return([]models.Reservation{}, nil).Once()
		store.On("ActiveByResource", ctx, models.ResourceElevator, int64(0)).
			Return([]models.Reservation{}, nil).Once()
		store.On("InsertReservation", ctx, mock.Anything).Return(database.ErrUnitLimit).Once()
		store.On("ActiveByUnit", ctx, "unitA").Return([]models.Reservation{racing}, nil).Once()

		_, err := svc.Submit(ctx, req)
		ue, ok := IsUnitLimit(err)
		assert.True(t, ok)
		assert.Len(t, ue.Existing, 1)
	})
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(store, bus, false)

		approved := &models.Reservation{ID: 10, Status: models.StatusApproved}
		store.On("UpdateReservationStatusIf", ctx, int64(10), models.StatusPending, models.StatusApproved, "ok").
			Return(nil).Once()
		store.On("GetReservation", ctx, int64(10)).Return(approved, nil).Once()
		bus.On("PublishJSON", EventDecided, approved).Return(nil).Once()

		r, err := svc.Decide(ctx, 10, models.StatusApproved, "ok")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusApproved, r.Status)
		store.AssertExpectations(t)
	})

	t.Run("DoubleApproveFails", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("UpdateReservationStatusIf", ctx, int64(10), models.StatusPending, models.StatusApproved, "").
			Return(database.ErrStaleStatus).Once()
		store.On("GetReservation", ctx, int64(10)).
			Return(&models.Reservation{ID: 10, Status: models.StatusApproved}, nil).Once()

		_, err := svc.Decide(ctx, 10, models.StatusApproved, "")
		se, ok := IsStateTransition(err)
		assert.True(t, ok)
		assert.Equal(t, models.StatusApproved, se.From)
	})

	t.Run("InvalidOutcome", func(t *testing.T) {
		svc := newTestService(new(mockStore), nil, false)
		_, err := svc.Decide(ctx, 10, models.StatusCancelled, "")
		_, ok := IsValidation(err)
		assert.True(t, ok)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("UpdateReservationStatusIf", ctx, int64(99), models.StatusPending, models.StatusRejected, "").
			Return(database.ErrNotFound).Once()

		_, err := svc.Decide(ctx, 99, models.StatusRejected, "")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerCancelsPending", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		pending := &models.Reservation{ID: 3, UnitID: "unitA", Status: models.StatusPending}
		cancelled := &models.Reservation{ID: 3, UnitID: "unitA", Status: models.StatusCancelled}
		store.On("GetReservation", ctx, int64(3)).Return(pending, nil).Once()
		store.On("UpdateReservationStatusIf", ctx, int64(3), models.StatusPending, models.StatusCancelled, "").
			Return(nil).Once()
		store.On("GetReservation", ctx, int64(3)).Return(cancelled, nil).Once()

		r, err := svc.Cancel(ctx, 3, "unitA")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, r.Status)
	})

	t.Run("WrongUnit", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("GetReservation", ctx, int64(3)).
			Return(&models.Reservation{ID: 3, UnitID: "unitA", Status: models.StatusPending}, nil).Once()

		_, err := svc.Cancel(ctx, 3, "unitB")
		_, ok := IsValidation(err)
		assert.True(t, ok)
	})

	t.Run("TerminalState", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("GetReservation", ctx, int64(3)).
			Return(&models.Reservation{ID: 3, UnitID: "unitA", Status: models.StatusRejected}, nil).Once()

		_, err := svc.Cancel(ctx, 3, "unitA")
		se, ok := IsStateTransition(err)
		assert.True(t, ok)
		assert.Equal(t, models.StatusRejected, se.From)
	})

	t.Run("AdminOverride", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		approved := &models.Reservation{ID: 4, UnitID: "unitC", Status: models.StatusApproved}
		cancelled := &models.Reservation{ID: 4, UnitID: "unitC", Status: models.StatusCancelled}
		store.On("GetReservation", ctx, int64(4)).Return(approved, nil).Once()
		store.On("UpdateReservationStatusIf", ctx, int64(4), models.StatusApproved, models.StatusCancelled, "").
			Return(nil).Once()
		store.On("GetReservation", ctx, int64(4)).Return(cancelled, nil).Once()

		r, err := svc.Cancel(ctx, 4, "")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, r.Status)
	})
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	t.Run("ConflictsCollectsAll", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		active := []models.Reservation{
			{ID: 1, StartTime: day(8), EndTime: day(10), Status: models.StatusPending},
			{ID: 2, StartTime: day(10), EndTime: day(11), Status: models.StatusApproved},
			{ID: 3, StartTime: day(13), EndTime: day(15), Status: models.StatusPending},
		}
		store.On("ActiveByResource", ctx, models.ResourceParking, int64(0)).Return(active, nil).Once()

		res, err := svc.CheckConflicts(ctx, models.ResourceParking, day(9), day(11), 0)
		assert.NoError(t, err)
		assert.True(t, res.HasConflict)
		assert.Len(t, res.Conflicting, 2)
	})

	t.Run("ExcludeID", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		store.On("ActiveByResource", ctx, models.ResourceParking, int64(3)).
			Return([]models.Reservation{}, nil).Once()

		res, err := svc.CheckConflicts(ctx, models.ResourceParking, day(13), day(14), 3)
		assert.NoError(t, err)
		assert.False(t, res.HasConflict)
		store.AssertExpectations(t)
	})

	t.Run("IdempotentReads", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		active := []models.Reservation{
			{ID: 1, StartTime: day(8), EndTime: day(10), Status: models.StatusPending},
		}
		store.On("ActiveByResource", ctx, models.ResourceOther, int64(0)).Return(active, nil).Twice()

		first, err := svc.CheckConflicts(ctx, models.ResourceOther, day(9), day(11), 0)
		assert.NoError(t, err)
		second, err := svc.CheckConflicts(ctx, models.ResourceOther, day(9), day(11), 0)
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("UnitCheckerToleratesMultiple", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, nil, false)

		// Historical invariant violations (direct admin inserts) still
		// report every blocking record.
		existing := []models.Reservation{
			{ID: 1, UnitID: "unitA", Status: models.StatusPending},
			{ID: 2, UnitID: "unitA", Status: models.StatusApproved},
		}
		store.On("ActiveByUnit", ctx, "unitA").Return(existing, nil).Once()

		res, err := svc.CheckUnit(ctx, "unitA")
		assert.NoError(t, err)
		assert.True(t, res.HasExisting)
		assert.Len(t, res.Existing, 2)
	})

	t.Run("InvalidInputs", func(t *testing.T) {
		svc := newTestService(new(mockStore), nil, false)

		_, err := svc.CheckConflicts(ctx, "rooftop", day(9), day(10), 0)
		_, ok := IsValidation(err)
		assert.True(t, ok)

		_, err = svc.CheckConflicts(ctx, models.ResourceParking, day(10), day(9), 0)
		_, ok = IsValidation(err)
		assert.True(t, ok)

		_, err = svc.CheckUnit(ctx, "")
		_, ok = IsValidation(err)
		assert.True(t, ok)
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := newTestService(store, nil, false)

	completed := &models.Reservation{ID: 6, Status: models.StatusCompleted}
	store.On("UpdateReservationStatusIf", ctx, int64(6), models.StatusApproved, models.StatusCompleted, "").
		Return(nil).Once()
	store.On("GetReservation", ctx, int64(6)).Return(completed, nil).Once()

	r, err := svc.Complete(ctx, 6)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)
}
