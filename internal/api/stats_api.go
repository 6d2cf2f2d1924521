package api

import (
	"net/http"

	"aptdesk/internal/metrics"
)

// handleDashboardStats returns headline counts for the admin dashboard.
// GET /api/stats/dashboard
func (s *HTTPServer) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("dashboard_stats")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.db.GetDashboardStats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load dashboard stats")
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleMonthlyStats returns reservation counts per month.
// GET /api/stats/monthly?months=6
func (s *HTTPServer) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("monthly_stats")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	months := atoiDefault(r.URL.Query().Get("months"), 6)
	if months > 24 {
		months = 24
	}

	counts, err := s.db.GetMonthlyStats(r.Context(), months)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"monthly": counts})
}

// handleResourceStats returns reservation counts per resource type.
// GET /api/stats/resources
func (s *HTTPServer) handleResourceStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("resource_stats")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.db.GetResourceDistribution(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"resources": counts})
}
