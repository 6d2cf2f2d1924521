package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"aptdesk/internal/database"
	"aptdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUserStore struct {
	users  map[int64]*models.User
	nextID int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int64]*models.User), nextID: 1}
}

func (m *memUserStore) CreateUser(_ context.Context, u *models.User) error {
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return nil
}

func (m *memUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

func (m *memUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memUserStore) TouchLastLogin(_ context.Context, id int64) error { return nil }

type memSessions struct {
	sessions map[string]int64
}

func newMemSessions() *memSessions { return &memSessions{sessions: make(map[string]int64)} }

func (m *memSessions) CreateSession(_ context.Context, token string, userID int64, _ time.Time) error {
	m.sessions[token] = userID
	return nil
}

func (m *memSessions) GetSession(_ context.Context, token string) (int64, error) {
	id, ok := m.sessions[token]
	if !ok {
		return 0, database.ErrNotFound
	}
	return id, nil
}

func (m *memSessions) DeleteSession(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func newTestAuth(t *testing.T) (*Service, *memUserStore, *memSessions) {
	t.Helper()
	users := newMemUserStore()
	sessions := newMemSessions()
	logger := zerolog.New(io.Discard)
	svc := NewService(users, sessions, "test-secret", 15*time.Minute, 24*time.Hour, &logger)
	return svc, users, sessions
}

func seedUser(t *testing.T, users *memUserStore, username, password, unit string, admin bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username: username, Email: username + "@example.com",
		PasswordHash: string(hash), Name: "Resident",
		ApartmentNumber: unit, IsAdmin: admin, IsActive: true,
	}
	require.NoError(t, users.CreateUser(context.Background(), u))
	return u
}

func TestRegister(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{
		Username: "resident1", Email: "r1@example.com",
		Password: "secret-pass", Name: "Kim Minsoo",
		ApartmentNumber: "101-1203",
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	assert.NotEqual(t, "secret-pass", u.PasswordHash)

	t.Run("ShortPassword", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Username: "x", Email: "x@example.com", Password: "short", Name: "X",
		})
		assert.Error(t, err)
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Username: "y"})
		assert.Error(t, err)
	})
}

func TestLoginAndVerify(t *testing.T) {
	svc, users, _ := newTestAuth(t)
	ctx := context.Background()
	u := seedUser(t, users, "resident1", "secret-pass", "101-1203", false)

	pair, got, err := svc.Login(ctx, "resident1", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.Equal(t, "101-1203", claims.UnitID)
	assert.False(t, claims.IsAdmin)

	t.Run("WrongPassword", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "resident1", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "ghost", "secret-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		u.IsActive = false
		_, _, err := svc.Login(ctx, "resident1", "secret-pass")
		assert.ErrorIs(t, err, ErrInactiveAccount)
		u.IsActive = true
	})

	t.Run("GarbageToken", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRefresh(t *testing.T) {
	svc, users, sessions := newTestAuth(t)
	ctx := context.Background()
	seedUser(t, users, "resident1", "secret-pass", "101-1203", false)

	pair, _, err := svc.Login(ctx, "resident1", "secret-pass")
	require.NoError(t, err)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	// Rotated token is revoked.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	t.Run("Logout", func(t *testing.T) {
		require.NoError(t, svc.Logout(ctx, newPair.RefreshToken))
		assert.Empty(t, sessions.sessions)
		_, err := svc.Refresh(ctx, newPair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
