package api

import (
	"errors"
	"net/http"

	"aptdesk/internal/auth"
	"aptdesk/internal/database"
	"aptdesk/internal/metrics"
)

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for POST /api/auth/refresh and
// /api/auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRegister creates a resident account.
// POST /api/auth/register
func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("register")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin exchanges credentials for a token pair. Rate limited to
// slow down credential stuffing.
// POST /api/auth/login
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("login")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.loginLimiter.allow(clientAddr(r)) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts; try again later")
		return
	}

	var req LoginRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tokens, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// One message for unknown user and bad password alike.
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": tokens,
		"user":   user,
	})
}

// handleRefresh rotates a refresh token.
// POST /api/auth/refresh
func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("refresh")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RefreshRequest
	if err := decodeStrict(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// handleLogout revokes a refresh token.
// POST /api/auth/logout
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("logout")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RefreshRequest
	if err := decodeStrict(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.log.Warn().Err(err).Msg("logout failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleMe returns the authenticated account.
// GET /api/me
func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("me")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims := claimsFrom(r)
	user, err := s.db.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "user store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleListUsers returns all accounts. Admin only.
// GET /api/users
func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_users")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	users, err := s.db.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "user store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleUserByID toggles an account on or off. Admin only.
// POST /api/users/{id}/activate
// POST /api/users/{id}/deactivate
func (s *HTTPServer) handleUserByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("user_by_id")

	id, action, err := pathID(r.URL.Path, "/api/users/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if r.Method != http.MethodPost || (action != "activate" && action != "deactivate") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	user, err := s.db.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "user store unavailable")
		return
	}

	user.IsActive = action == "activate"
	if err := s.db.UpdateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusServiceUnavailable, "user store unavailable")
		return
	}

	s.log.Info().Int64("user_id", id).Bool("active", user.IsActive).
		Msg("account status changed")
	writeJSON(w, http.StatusOK, user)
}
