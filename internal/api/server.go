// Package api exposes the reservation desk over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"aptdesk/internal/auth"
	"aptdesk/internal/database"
	"aptdesk/internal/reservation"
	"aptdesk/shared/access"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer serves the resident and admin REST API.
type HTTPServer struct {
	server       *http.Server
	db           *database.DB
	reservations *reservation.Service
	auth         *auth.Service
	access       *access.Service
	loginLimiter *loginLimiter
	log          zerolog.Logger
}

// loginLimiter throttles login attempts per client address, so credential
// stuffing from one source does not lock residents out of the whole
// endpoint.
type loginLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newLoginLimiter(perMin, burst int) *loginLimiter {
	return &loginLimiter{
		rate:    rate.Limit(float64(perMin) / 60.0),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *loginLimiter) allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.clients[client]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.clients[client] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// clientAddr extracts the client host from the request for rate-limit
// keying.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Options carries the tunables NewHTTPServer needs beyond its
// collaborators.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	LoginRatePerMin int
	LoginBurst      int
}

// NewHTTPServer wires the handlers. Call Start to begin serving.
func NewHTTPServer(
	opts Options,
	db *database.DB,
	reservations *reservation.Service,
	authSvc *auth.Service,
	accessSvc *access.Service,
	logger zerolog.Logger,
) *HTTPServer {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.LoginRatePerMin == 0 {
		opts.LoginRatePerMin = 10
	}
	if opts.LoginBurst == 0 {
		opts.LoginBurst = 5
	}

	s := &HTTPServer{
		db:           db,
		reservations: reservations,
		auth:         authSvc,
		access:       accessSvc,
		loginLimiter: newLoginLimiter(opts.LoginRatePerMin, opts.LoginBurst),
		log:          logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)

	mux.HandleFunc("/api/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("/api/users", s.requireAdmin(s.handleListUsers))
	mux.HandleFunc("/api/users/", s.requireAdmin(s.handleUserByID))

	mux.HandleFunc("/api/reservations", s.requireAuth(s.handleReservations))
	mux.HandleFunc("/api/reservations/check", s.requireAuth(s.handleCheckConflicts))
	mux.HandleFunc("/api/reservations/", s.requireAuth(s.handleReservationByID))

	mux.HandleFunc("/api/notices", s.requireAuth(s.handleNotices))
	mux.HandleFunc("/api/notices/", s.requireAuth(s.handleNoticeByID))

	mux.HandleFunc("/api/stats/dashboard", s.requireAdmin(s.handleDashboardStats))
	mux.HandleFunc("/api/stats/monthly", s.requireAdmin(s.handleMonthlyStats))
	mux.HandleFunc("/api/stats/resources", s.requireAdmin(s.handleResourceStats))

	mux.HandleFunc("/api/admin/blocked-units", s.requireAdmin(s.handleBlockedUnits))
	mux.HandleFunc("/api/admin/blocked-units/", s.requireAdmin(s.handleUnblockUnit))

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.withRequestID(mux),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

type ctxKey int

const claimsKey ctxKey = 0

func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return c
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// requireAuth verifies the bearer token and stores the claims in the
// request context.
func (s *HTTPServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.verifyRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid access token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireAuth plus an admin-role check.
func (s *HTTPServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil || !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin rights required")
			return
		}
		next(w, r)
	})
}

func (s *HTTPServer) verifyRequest(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("no bearer token")
	}
	return s.auth.Verify(strings.TrimPrefix(header, prefix))
}

// pathID extracts the numeric id segment following prefix, plus any
// trailing action segment ("/api/reservations/42/cancel" -> 42, "cancel").
func pathID(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid id in path")
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeStrict(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
