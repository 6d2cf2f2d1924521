package access

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockBlocklist struct {
	mock.Mock
}

func (m *mockBlocklist) IsUnitBlocked(ctx context.Context, unitID string) (bool, error) {
	args := m.Called(ctx, unitID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBlocklist) GetBlockedUnit(ctx context.Context, unitID string) (*BlockedUnit, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BlockedUnit), args.Error(1)
}

func (m *mockBlocklist) BlockUnit(ctx context.Context, unitID, reason string, blockedBy int64) error {
	args := m.Called(ctx, unitID, reason, blockedBy)
	return args.Error(0)
}

func (m *mockBlocklist) UnblockUnit(ctx context.Context, unitID string) error {
	args := m.Called(ctx, unitID)
	return args.Error(0)
}

func (m *mockBlocklist) ListBlockedUnits(ctx context.Context) ([]BlockedUnit, error) {
	args := m.Called(ctx)
	return args.Get(0).([]BlockedUnit), args.Error(1)
}

type mockAdmins struct {
	mock.Mock
}

func (m *mockAdmins) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func TestCanSubmit(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("UnblockedUnit", func(t *testing.T) {
		blocklist := new(mockBlocklist)
		blocklist.On("GetBlockedUnit", ctx, "12A").Return(nil, nil)

		svc := NewService(blocklist, new(mockAdmins), logger)

		ok, reason, err := svc.CanSubmit(ctx, "12A")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("BlockedUnitWithReason", func(t *testing.T) {
		blocklist := new(mockBlocklist)
		blocklist.On("GetBlockedUnit", ctx, "7B").Return(&BlockedUnit{
			UnitID: "7B",
			Reason: "unpaid dues",
		}, nil)

		svc := NewService(blocklist, new(mockAdmins), logger)

		ok, reason, err := svc.CanSubmit(ctx, "7B")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "unpaid dues")
	})
}

func TestBlockUnit(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("AdminBlocks", func(t *testing.T) {
		blocklist := new(mockBlocklist)
		admins := new(mockAdmins)
		admins.On("IsAdmin", ctx, int64(1)).Return(true, nil)
		blocklist.On("BlockUnit", ctx, "7B", "noise complaints", int64(1)).Return(nil)

		svc := NewService(blocklist, admins, logger)

		err := svc.BlockUnit(ctx, "7B", "noise complaints", 1)
		assert.NoError(t, err)
		blocklist.AssertExpectations(t)
	})

	t.Run("NonAdminRefused", func(t *testing.T) {
		blocklist := new(mockBlocklist)
		admins := new(mockAdmins)
		admins.On("IsAdmin", ctx, int64(42)).Return(false, nil)

		svc := NewService(blocklist, admins, logger)

		err := svc.BlockUnit(ctx, "7B", "spite", 42)
		assert.Error(t, err)
		blocklist.AssertNotCalled(t, "BlockUnit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	blocklist := new(mockBlocklist)
	blocklist.On("GetBlockedUnit", ctx, "3C").Return(&BlockedUnit{UnitID: "3C"}, nil)

	svc := NewService(blocklist, new(mockAdmins), logger)

	err := svc.Middleware(ctx, "3C")
	assert.Error(t, err)
	assert.True(t, IsAccessDenied(err))
}

func TestAdminMiddleware(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	admins := new(mockAdmins)
	admins.On("IsAdmin", ctx, int64(5)).Return(false, nil)

	svc := NewService(new(mockBlocklist), admins, logger)

	err := svc.AdminMiddleware(ctx, 5)
	assert.Error(t, err)
	assert.True(t, IsAccessDenied(err))
}
