package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistration(deviceID, userID string) *types.DeviceRegistration {
	now := time.Now().UTC()
	return &types.DeviceRegistration{
		DeviceID:    deviceID,
		UserID:      userID,
		Platform:    types.PlatformIOS,
		DeviceToken: "token-" + deviceID,
		TimeZone:    "UTC",
		PushEnabled: true,
		Metadata: types.DeviceMetadata{
			InstallDate:    now,
			LastActiveDate: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDeviceStore_ReregistrationPreservesInstallDate(t *testing.T) {
	s := NewDeviceStore()
	ctx := context.Background()

	first := newRegistration("device-1", "user-1")
	first.Metadata.InstallDate = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	first.Metadata.SessionCount = 12
	require.NoError(t, s.Upsert(ctx, first))

	second := newRegistration("device-1", "user-1")
	second.DeviceToken = "token-rotated"
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "token-rotated", got.DeviceToken)
	assert.Equal(t, first.Metadata.InstallDate, got.Metadata.InstallDate)
	assert.Equal(t, 12, got.Metadata.SessionCount)
}

func TestDeviceStore_ListByUser(t *testing.T) {
	s := NewDeviceStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRegistration("device-1", "user-1")))
	require.NoError(t, s.Upsert(ctx, newRegistration("device-2", "user-1")))
	require.NoError(t, s.Upsert(ctx, newRegistration("device-3", "user-2")))

	devices, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	devices, err = s.ListByUsers(ctx, []string{"user-1", "user-2"})
	require.NoError(t, err)
	assert.Len(t, devices, 3)
}

func TestDeviceStore_Counters(t *testing.T) {
	s := NewDeviceStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRegistration("device-1", "user-1")))
	require.NoError(t, s.IncrementSessionCount(ctx, "device-1"))
	require.NoError(t, s.IncrementSessionCount(ctx, "device-1"))
	require.NoError(t, s.IncrementCrashCount(ctx, "device-1"))

	got, err := s.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Metadata.SessionCount)
	assert.Equal(t, 1, got.Metadata.CrashCount)
}

func TestDeviceStore_DeleteAndNotFound(t *testing.T) {
	s := NewDeviceStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRegistration("device-1", "user-1")))
	require.NoError(t, s.Delete(ctx, "device-1"))

	_, err := s.Get(ctx, "device-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "device-1"), store.ErrNotFound)
}
