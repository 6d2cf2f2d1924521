package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aptdesk/internal/database"
	"aptdesk/internal/metrics"
	"aptdesk/internal/models"

	"github.com/rs/zerolog"
)

// EventPublisher delivers reservation lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Event types published by the service.
const (
	EventCreated   = "reservation.created"
	EventDecided   = "reservation.decided"
	EventCancelled = "reservation.cancelled"
	EventCompleted = "reservation.completed"
)

// Request is a proposed reservation prior to admission.
type Request struct {
	ResourceType models.ResourceType `json:"resource_type"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	UnitID       string              `json:"unit_id"`
	UserID       int64               `json:"user_id"`
	Description  string              `json:"description,omitempty"`
}

// Limits bounds accepted reservation windows. A zero value disables
// the corresponding bound.
type Limits struct {
	// MaxWindow caps end_time minus start_time.
	MaxWindow time.Duration
	// MaxAdvance caps how far in the future start_time may lie.
	MaxAdvance time.Duration
}

// Service decides whether reservation requests are admitted and drives
// the status lifecycle afterwards.
type Service struct {
	store    Store
	bus      EventPublisher
	fsm      *FSM
	failOpen bool
	logger   *zerolog.Logger

	// Limits is set once at startup, before the service handles requests.
	Limits Limits

	// Serializes the check-then-create sequence per contended key.
	// Lock order is resource before unit, always.
	resourceLocks keyedMutex
	unitLocks     keyedMutex
}

// NewService creates the admission controller. failOpen admits requests
// when the store cannot be queried during a check; the default (false)
// refuses them with a StoreError.
func NewService(store Store, bus EventPublisher, failOpen bool, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		fsm:      NewFSM(),
		failOpen: failOpen,
		logger:   logger,
	}
}

// Submit runs the admission sequence: validate, unit-cardinality check,
// time-conflict check, create pending. The checks and the insert run
// under per-resource and per-unit locks; the partial unique index on
// active units backs the unit rule at the store level.
func (s *Service) Submit(ctx context.Context, req Request) (*models.Reservation, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	unlockResource := s.resourceLocks.lock(string(req.ResourceType))
	defer unlockResource()
	unlockUnit := s.unitLocks.lock(req.UnitID)
	defer unlockUnit()

	unitRes, err := s.CheckUnit(ctx, req.UnitID)
	if err != nil {
		if _, unavailable := IsStoreUnavailable(err); unavailable && s.failOpen {
			s.logger.Warn().Err(err).Str("unit_id", req.UnitID).
				Msg("unit check failed, admitting anyway (fail-open)")
		} else {
			return nil, err
		}
	} else if unitRes.HasExisting {
		metrics.IncAdmissionRejected("unit_limit")
		return nil, &UnitLimitError{UnitID: req.UnitID, Existing: unitRes.Existing}
	}

	conflictRes, err := s.CheckConflicts(ctx, req.ResourceType, req.StartTime, req.EndTime, 0)
	if err != nil {
		if _, unavailable := IsStoreUnavailable(err); unavailable && s.failOpen {
			s.logger.Warn().Err(err).Str("resource_type", string(req.ResourceType)).
				Msg("conflict check failed, admitting anyway (fail-open)")
		} else {
			return nil, err
		}
	} else if conflictRes.HasConflict {
		metrics.IncAdmissionRejected("time_conflict")
		return nil, &ConflictError{ResourceType: req.ResourceType, Conflicting: conflictRes.Conflicting}
	}

	r := &models.Reservation{
		UnitID:       req.UnitID,
		UserID:       req.UserID,
		ResourceType: req.ResourceType,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
		Description:  req.Description,
		Status:       models.StatusPending,
	}
	if err := s.store.InsertReservation(ctx, r); err != nil {
		if errors.Is(err, database.ErrUnitLimit) {
			// The index caught a racing admission the advisory check
			// missed.
			existing, qerr := s.store.ActiveByUnit(ctx, req.UnitID)
			if qerr != nil {
				existing = nil
			}
			metrics.IncAdmissionRejected("unit_limit")
			return nil, &UnitLimitError{UnitID: req.UnitID, Existing: existing}
		}
		return nil, &StoreError{Op: "insert reservation", Err: err}
	}

	metrics.IncReservationCreated(string(r.Status))
	s.publish(EventCreated, r)

	s.logger.Info().
		Int64("reservation_id", r.ID).
		Str("unit_id", r.UnitID).
		Str("resource_type", string(r.ResourceType)).
		Time("start", r.StartTime).
		Time("end", r.EndTime).
		Msg("reservation admitted")

	return r, nil
}

// Decide applies an admin approval or rejection. Only valid from pending.
func (s *Service) Decide(
	ctx context.Context,
	id int64,
	outcome models.ReservationStatus,
	comment string,
) (*models.Reservation, error) {
	if outcome != models.StatusApproved && outcome != models.StatusRejected {
		return nil, &ValidationError{Field: "outcome", Message: "must be approved or rejected"}
	}
	return s.transition(ctx, id, models.StatusPending, outcome, comment, EventDecided)
}

// Cancel moves a reservation to cancelled. Valid from pending or
// approved. unitID guards ownership; pass an empty unitID for the admin
// override path.
func (s *Service) Cancel(ctx context.Context, id int64, unitID string) (*models.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, &StoreError{Op: "get reservation", Err: err}
	}
	if unitID != "" && current.UnitID != unitID {
		return nil, &ValidationError{Field: "unit_id", Message: "reservation belongs to another unit"}
	}

	if !s.fsm.CanTransition(current.Status, models.StatusCancelled) {
		return nil, &StateTransitionError{ReservationID: id, From: current.Status, To: models.StatusCancelled}
	}

	updated, err := s.transition(ctx, id, current.Status, models.StatusCancelled, "", EventCancelled)
	if err != nil {
		return nil, err
	}
	metrics.IncReservationCancelled()
	return updated, nil
}

// Complete moves an elapsed approved reservation to completed. Called by
// the background sweeper, not by request handlers.
func (s *Service) Complete(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.transition(ctx, id, models.StatusApproved, models.StatusCompleted, "", EventCompleted)
}

// transition performs a guarded status update. The compare-and-set in the
// store prevents lost updates when two actors race on one reservation.
func (s *Service) transition(
	ctx context.Context,
	id int64,
	from, to models.ReservationStatus,
	comment string,
	eventType string,
) (*models.Reservation, error) {
	if !s.fsm.CanTransition(from, to) {
		return nil, &StateTransitionError{ReservationID: id, From: from, To: to}
	}

	err := s.store.UpdateReservationStatusIf(ctx, id, from, to, comment)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, err
	case errors.Is(err, database.ErrStaleStatus):
		current, gerr := s.store.GetReservation(ctx, id)
		if gerr != nil {
			return nil, &StateTransitionError{ReservationID: id, From: from, To: to}
		}
		return nil, &StateTransitionError{ReservationID: id, From: current.Status, To: to}
	case err != nil:
		return nil, &StoreError{Op: "update status", Err: err}
	}

	updated, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, &StoreError{Op: "reload reservation", Err: err}
	}

	if to == models.StatusApproved || to == models.StatusRejected {
		metrics.IncDecision(string(to))
	}
	s.publish(eventType, updated)

	s.logger.Info().
		Int64("reservation_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("reservation status changed")

	return updated, nil
}

func (s *Service) validate(req Request) error {
	if !models.ValidResourceType(req.ResourceType) {
		return &ValidationError{Field: "resource_type", Message: "unknown resource type"}
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return &ValidationError{Field: "time_range", Message: "start_time and end_time are required"}
	}
	if !req.StartTime.Before(req.EndTime) {
		return &ValidationError{Field: "time_range", Message: "start_time must be before end_time"}
	}
	if req.UnitID == "" {
		return &ValidationError{Field: "unit_id", Message: "unit_id is required"}
	}
	if s.Limits.MaxWindow > 0 && req.EndTime.Sub(req.StartTime) > s.Limits.MaxWindow {
		return &ValidationError{
			Field:   "time_range",
			Message: fmt.Sprintf("reservation window may not exceed %s", s.Limits.MaxWindow),
		}
	}
	if s.Limits.MaxAdvance > 0 && req.StartTime.After(time.Now().Add(s.Limits.MaxAdvance)) {
		return &ValidationError{
			Field:   "start_time",
			Message: fmt.Sprintf("start_time may not be more than %s ahead", s.Limits.MaxAdvance),
		}
	}
	return nil
}

func (s *Service) publish(eventType string, r *models.Reservation) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, r); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// keyedMutex provides one mutex per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
