package api

import (
	"net/http"
	"strings"

	"aptdesk/internal/metrics"
)

// BlockUnitRequest is the request body for POST /api/admin/blocked-units.
type BlockUnitRequest struct {
	UnitID string `json:"unit_id"`
	Reason string `json:"reason,omitempty"`
}

// handleBlockedUnits dispatches GET (list) and POST (block).
func (s *HTTPServer) handleBlockedUnits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBlockedUnits(w, r)
	case http.MethodPost:
		s.blockUnit(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// GET /api/admin/blocked-units
func (s *HTTPServer) listBlockedUnits(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_blocked_units")

	units, err := s.access.ListBlockedUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "blocklist unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"blocked_units": units})
}

// POST /api/admin/blocked-units
func (s *HTTPServer) blockUnit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("block_unit")

	claims := claimsFrom(r)

	var req BlockUnitRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UnitID == "" {
		writeError(w, http.StatusBadRequest, "unit_id is required")
		return
	}

	if err := s.access.BlockUnit(r.Context(), req.UnitID, req.Reason, claims.UserID()); err != nil {
		s.log.Error().Err(err).Str("unit_id", req.UnitID).Msg("failed to block unit")
		writeError(w, http.StatusServiceUnavailable, "failed to block unit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUnblockUnit removes a unit from the blocklist.
// DELETE /api/admin/blocked-units/{unit_id}
func (s *HTTPServer) handleUnblockUnit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("unblock_unit")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	unitID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/blocked-units/"), "/")
	if unitID == "" {
		writeError(w, http.StatusBadRequest, "unit_id is required")
		return
	}

	if err := s.access.UnblockUnit(r.Context(), unitID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to unblock unit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
