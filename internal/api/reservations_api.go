package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"aptdesk/internal/database"
	"aptdesk/internal/metrics"
	"aptdesk/internal/models"
	"aptdesk/internal/reservation"
	"aptdesk/shared/access"
)

// SubmitReservationRequest is the request body for POST /api/reservations.
type SubmitReservationRequest struct {
	ResourceType string    `json:"resource_type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Description  string    `json:"description,omitempty"`
	UnitID       string    `json:"unit_id,omitempty"` // admins may submit for another unit
}

// DecisionRequest is the request body for POST /api/reservations/{id}/decision.
type DecisionRequest struct {
	Outcome string `json:"outcome"` // "approved" or "rejected"
	Comment string `json:"comment,omitempty"`
}

// CheckRequest is the request body for POST /api/reservations/check.
type CheckRequest struct {
	ResourceType string    `json:"resource_type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	ExcludeID    int64     `json:"exclude_id,omitempty"`
}

// ListReservationsResponse is the response for GET /api/reservations.
type ListReservationsResponse struct {
	Reservations []models.Reservation `json:"reservations"`
	Total        int                  `json:"total"`
	Offset       int                  `json:"offset"`
	Limit        int                  `json:"limit"`
}

// handleReservations dispatches GET (list) and POST (submit).
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.submitReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// submitReservation runs the admission sequence for a new request.
// POST /api/reservations
func (s *HTTPServer) submitReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("submit_reservation")

	claims := claimsFrom(r)

	var req SubmitReservationRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	unitID := claims.UnitID
	if req.UnitID != "" && req.UnitID != claims.UnitID {
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "cannot submit for another unit")
			return
		}
		unitID = req.UnitID
	}
	if unitID == "" {
		writeError(w, http.StatusBadRequest, "no apartment unit on the account")
		return
	}

	if err := s.access.Middleware(r.Context(), unitID); err != nil {
		if access.IsAccessDenied(err) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "access check failed")
		return
	}

	created, err := s.reservations.Submit(r.Context(), reservation.Request{
		ResourceType: models.ResourceType(req.ResourceType),
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		UnitID:       unitID,
		UserID:       claims.UserID(),
		Description:  req.Description,
	})
	if err != nil {
		s.writeReservationError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// listReservations returns reservations for the caller's unit, or any
// unit for admins.
// GET /api/reservations?status=&unit_id=&from=&to=&offset=&limit=
func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	claims := claimsFrom(r)
	q := r.URL.Query()

	filter := database.ReservationFilter{
		Status: models.ReservationStatus(q.Get("status")),
		UnitID: q.Get("unit_id"),
		Offset: atoiDefault(q.Get("offset"), 0),
		Limit:  atoiDefault(q.Get("limit"), 50),
	}
	if !claims.IsAdmin {
		// Residents only ever see their own unit. An account without a
		// unit has nothing to see; an empty filter would match everyone.
		if claims.UnitID == "" {
			writeJSON(w, http.StatusOK, ListReservationsResponse{
				Reservations: []models.Reservation{},
				Offset:       filter.Offset,
				Limit:        filter.Limit,
			})
			return
		}
		filter.UnitID = claims.UnitID
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return
		}
		filter.DateFrom = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
			return
		}
		filter.DateTo = t
	}

	reservations, total, err := s.db.ListReservations(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list reservations")
		writeError(w, http.StatusServiceUnavailable, "reservation store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, ListReservationsResponse{
		Reservations: reservations,
		Total:        total,
		Offset:       filter.Offset,
		Limit:        filter.Limit,
	})
}

// handleReservationByID dispatches on the path tail:
// GET    /api/reservations/{id}
// POST   /api/reservations/{id}/decision
// POST   /api/reservations/{id}/cancel
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/reservations/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getReservation(w, r, id)
	case action == "decision" && r.Method == http.MethodPost:
		s.decideReservation(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancelReservation(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("get_reservation")

	claims := claimsFrom(r)

	res, err := s.db.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "reservation store unavailable")
		return
	}
	if !claims.IsAdmin && res.UnitID != claims.UnitID {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// decideReservation applies an admin approval or rejection.
func (s *HTTPServer) decideReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("decide_reservation")

	claims := claimsFrom(r)
	if !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	var req DecisionRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.reservations.Decide(r.Context(), id, models.ReservationStatus(req.Outcome), req.Comment)
	if err != nil {
		s.writeReservationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// cancelReservation cancels the caller's reservation. Admins may cancel
// any reservation.
func (s *HTTPServer) cancelReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("cancel_reservation")

	claims := claimsFrom(r)
	unitID := claims.UnitID
	if claims.IsAdmin {
		unitID = "" // admin override skips the ownership check
	}

	updated, err := s.reservations.Cancel(r.Context(), id, unitID)
	if err != nil {
		s.writeReservationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleCheckConflicts previews the admission checks without creating
// anything. Useful for showing availability before submitting.
// POST /api/reservations/check
func (s *HTTPServer) handleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_conflicts")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	claims := claimsFrom(r)

	var req CheckRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conflicts, err := s.reservations.CheckConflicts(
		r.Context(), models.ResourceType(req.ResourceType), req.StartTime, req.EndTime, req.ExcludeID)
	if err != nil {
		s.writeReservationError(w, err)
		return
	}

	// Admin accounts carry no unit; the unit check only applies to
	// residents.
	var unit *reservation.UnitResult
	if claims.UnitID != "" {
		unit, err = s.reservations.CheckUnit(r.Context(), claims.UnitID)
		if err != nil {
			s.writeReservationError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conflict": conflicts,
		"unit":     unit,
	})
}

// writeReservationError maps the admission error taxonomy onto HTTP
// statuses. Rejections carry the blocking records so clients can show
// them.
func (s *HTTPServer) writeReservationError(w http.ResponseWriter, err error) {
	if ve, ok := reservation.IsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": ve.Error(),
			"field": ve.Field,
		})
		return
	}
	if ue, ok := reservation.IsUnitLimit(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    ue.Error(),
			"reason":   "unit_limit",
			"existing": ue.Existing,
		})
		return
	}
	if ce, ok := reservation.IsConflict(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       ce.Error(),
			"reason":      "time_conflict",
			"conflicting": ce.Conflicting,
		})
		return
	}
	if se, ok := reservation.IsStateTransition(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  se.Error(),
			"reason": "invalid_state",
			"from":   se.From,
			"to":     se.To,
		})
		return
	}
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if _, ok := reservation.IsStoreUnavailable(err); ok {
		s.log.Error().Err(err).Msg("reservation store unavailable")
		writeError(w, http.StatusServiceUnavailable, "reservation store unavailable")
		return
	}

	s.log.Error().Err(err).Msg("unexpected reservation error")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
