package services

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration(deviceID, userID string) *types.DeviceRegistration {
	return &types.DeviceRegistration{
		DeviceID:    deviceID,
		UserID:      userID,
		Platform:    types.PlatformAndroid,
		DeviceToken: "token-" + deviceID,
		AppVersion:  "2.1.0",
		TimeZone:    "Europe/Berlin",
		PushEnabled: true,
	}
}

func TestDeviceService_RegisterAndGet(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	reg, err := svc.Register(ctx, validRegistration("device-1", "user-1"))
	require.NoError(t, err)
	assert.False(t, reg.Metadata.InstallDate.IsZero())
	assert.False(t, reg.Metadata.LastActiveDate.IsZero())

	got, err := svc.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = svc.Get(ctx, "device-unknown")
	assert.Error(t, err)
}

func TestDeviceService_RegisterValidation(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	bad := validRegistration("", "user-1")
	_, err := svc.Register(ctx, bad)
	assert.Error(t, err)

	bad = validRegistration("device-1", "user-1")
	bad.Platform = "blackberry"
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)

	bad = validRegistration("device-1", "user-1")
	bad.DeviceToken = ""
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)

	bad = validRegistration("device-1", "user-1")
	bad.TimeZone = "Mars/Olympus_Mons"
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)

	bad = validRegistration("device-1", "user-1")
	bad.Preferences.QuietHours = types.QuietHours{Enabled: true, Start: "25:00", End: "07:00"}
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)
}

func TestDeviceService_ReregistrationKeepsInstallDate(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	first := validRegistration("device-1", "user-1")
	first.Metadata.InstallDate = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.Register(ctx, first)
	require.NoError(t, err)

	rotated := validRegistration("device-1", "user-1")
	rotated.DeviceToken = "token-rotated"
	got, err := svc.Register(ctx, rotated)
	require.NoError(t, err)

	assert.Equal(t, "token-rotated", got.DeviceToken)
	assert.Equal(t, first.Metadata.InstallDate, got.Metadata.InstallDate)
}

func TestDeviceService_PartialUpdate(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration("device-1", "user-1"))
	require.NoError(t, err)

	token := "token-new"
	got, err := svc.Update(ctx, "device-1", &types.DeviceUpdate{DeviceToken: &token})
	require.NoError(t, err)
	assert.Equal(t, "token-new", got.DeviceToken)
	assert.Equal(t, "2.1.0", got.AppVersion)

	badTZ := "Nowhere/Special"
	_, err = svc.Update(ctx, "device-1", &types.DeviceUpdate{TimeZone: &badTZ})
	assert.Error(t, err)

	empty := ""
	_, err = svc.Update(ctx, "device-1", &types.DeviceUpdate{DeviceToken: &empty})
	assert.Error(t, err)
}

func TestDeviceService_UpdatePreferences(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration("device-1", "user-1"))
	require.NoError(t, err)

	got, err := svc.UpdatePreferences(ctx, "device-1", &types.DevicePreferences{
		Notifications: map[types.NotificationCategory]bool{types.CategoryPromotions: false},
		QuietHours:    types.QuietHours{Enabled: true, Start: "22:00", End: "07:00"},
	})
	require.NoError(t, err)
	assert.False(t, got.Preferences.Notifications[types.CategoryPromotions])
	assert.True(t, got.Preferences.QuietHours.Enabled)

	_, err = svc.UpdatePreferences(ctx, "device-1", &types.DevicePreferences{
		QuietHours: types.QuietHours{Enabled: true, Start: "bedtime", End: "07:00"},
	})
	assert.Error(t, err)
}

func TestDeviceService_Delete(t *testing.T) {
	svc := NewDeviceService(memory.NewDeviceStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration("device-1", "user-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "device-1"))
	assert.Error(t, svc.Delete(ctx, "device-1"))
	_, err = svc.Get(ctx, "device-1")
	assert.Error(t, err)
}
