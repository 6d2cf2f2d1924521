package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aptdesk/internal/models"
	"aptdesk/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveAccount    = errors.New("account is deactivated")
	ErrUsernameTaken      = errors.New("username or email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of the database the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// Claims is the JWT payload for access tokens.
type Claims struct {
	UnitID  string `json:"unit_id,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterRequest carries a new account's fields.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	ApartmentNumber string `json:"apartment_number,omitempty"`
}

// Service issues and verifies resident credentials. The admission
// controller never sees any of this; it trusts the unit id the API layer
// extracts from a verified token.
type Service struct {
	users      UserStore
	sessions   repository.SessionRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zerolog.Logger
}

// NewService creates the auth service.
func NewService(
	users UserStore,
	sessions repository.SessionRepository,
	secret string,
	accessTTL, refreshTTL time.Duration,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Register creates a resident account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if req.Username == "" || req.Password == "" || req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("username, email, password and name are required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Username:        req.Username,
		Email:           req.Email,
		PasswordHash:    string(hash),
		Name:            req.Name,
		Phone:           req.Phone,
		ApartmentNumber: req.ApartmentNumber,
		IsActive:        true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, *models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		// Same error for unknown user and bad password.
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, nil, ErrInactiveAccount
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Msg("failed to record login time")
	}

	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a new pair and revokes the
// old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.sessions.GetSession(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !u.IsActive {
		return nil, ErrInactiveAccount
	}

	if err := s.sessions.DeleteSession(ctx, refreshToken); err != nil {
		s.logger.Error().Err(err).Msg("failed to revoke rotated refresh token")
	}

	return s.issueTokens(ctx, u)
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.DeleteSession(ctx, refreshToken)
}

// Verify parses and validates an access token.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) issueTokens(ctx context.Context, u *models.User) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := Claims{
		UnitID:  u.ApartmentNumber,
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := uuid.New().String()
	if err := s.sessions.CreateSession(ctx, refresh, u.ID, now.Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// UserID extracts the numeric user id from verified claims.
func (c *Claims) UserID() int64 {
	var id int64
	_, _ = fmt.Sscanf(c.Subject, "%d", &id)
	return id
}
