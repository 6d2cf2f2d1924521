package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return m.Called(ctx, token, userID, expiresAt).Error(0)
}

func (m *mockRepo) GetSession(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) DeleteSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func TestFailoverSessionRepository(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		primary.On("GetSession", ctx, "tok1").Return(int64(1), nil).Once()

		userID, err := repo.GetSession(ctx, "tok1")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), userID)
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		primary.On("GetSession", ctx, "tok2").Return(int64(0), errors.New("fail")).Once()
		fallback.On("GetSession", ctx, "tok2").Return(int64(2), nil).Once()

		userID, err := repo.GetSession(ctx, "tok2")
		assert.NoError(t, err)
		assert.Equal(t, int64(2), userID)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("DownSkipsPrimary", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())

		fallback.On("GetSession", ctx, "tok3").Return(int64(3), nil).Once()

		userID, err := repo.GetSession(ctx, "tok3")
		assert.NoError(t, err)
		assert.Equal(t, int64(3), userID)
		primary.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetSession", ctx, "tok4").Return(int64(4), nil).Once()

		userID, err := repo.GetSession(ctx, "tok4")
		assert.NoError(t, err)
		assert.Equal(t, int64(4), userID)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryMissFallsThrough", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		primary.On("GetSession", ctx, "tok5").Return(int64(0), ErrSessionNotFound).Once()
		fallback.On("GetSession", ctx, "tok5").Return(int64(5), nil).Once()

		userID, err := repo.GetSession(ctx, "tok5")
		assert.NoError(t, err)
		assert.Equal(t, int64(5), userID)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("CreateMirrorsToFallback", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		exp := time.Now().Add(time.Hour)
		primary.On("CreateSession", ctx, "tok6", int64(6), exp).Return(nil).Once()
		fallback.On("CreateSession", ctx, "tok6", int64(6), exp).Return(nil).Once()

		assert.NoError(t, repo.CreateSession(ctx, "tok6", 6, exp))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ConcurrentReadsDuringOutage", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		// Flapping primary: every attempt fails, so goroutines race on
		// the down flag and the recovery timestamp.
		primary.On("GetSession", ctx, "tok8").Return(int64(0), errors.New("fail"))
		fallback.On("GetSession", ctx, "tok8").Return(int64(8), nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					userID, err := repo.GetSession(ctx, "tok8")
					assert.NoError(t, err)
					assert.Equal(t, int64(8), userID)
				}
			}()
		}
		wg.Wait()
		assert.True(t, repo.isDown.Load())
	})

	t.Run("DeleteAlwaysHitsFallback", func(t *testing.T) {
		primary := new(mockRepo)
		fallback := new(mockRepo)
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		primary.On("DeleteSession", ctx, "tok7").Return(nil).Once()
		fallback.On("DeleteSession", ctx, "tok7").Return(nil).Once()

		assert.NoError(t, repo.DeleteSession(ctx, "tok7"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
