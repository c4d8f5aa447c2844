package services

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAppConfig(t *testing.T, configs *memory.AppConfigStore, id string, platform types.Platform, version string) *types.MobileAppConfig {
	t.Helper()
	cfg := &types.MobileAppConfig{
		ID:        id,
		Platform:  platform,
		Version:   version,
		Features:  types.AppConfigFeatures{OfflineMode: true, PushNotifications: true},
		Limits:    types.AppConfigLimits{MaxOfflineStorage: 100, SessionTimeout: 30},
		API:       types.AppConfigAPI{BaseURL: "https://api.example.com/v1", Timeout: 10000, RetryAttempts: 3},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, configs.Create(context.Background(), cfg))
	return cfg
}

func TestAppConfigService_GetPrefersVersionPin(t *testing.T) {
	configs := memory.NewAppConfigStore()
	svc := NewAppConfigService(configs)
	ctx := context.Background()

	seedAppConfig(t, configs, "ios-default", types.PlatformIOS, "")
	pinned := seedAppConfig(t, configs, "ios-2.1.0", types.PlatformIOS, "2.1.0")

	got, err := svc.GetConfig(ctx, types.PlatformIOS, "2.1.0")
	require.NoError(t, err)
	assert.Equal(t, pinned.ID, got.ID)
}

func TestAppConfigService_GetFallsBackToPlatformDefault(t *testing.T) {
	configs := memory.NewAppConfigStore()
	svc := NewAppConfigService(configs)
	ctx := context.Background()

	fallback := seedAppConfig(t, configs, "ios-default", types.PlatformIOS, "")

	got, err := svc.GetConfig(ctx, types.PlatformIOS, "9.9.9")
	require.NoError(t, err)
	assert.Equal(t, fallback.ID, got.ID)
}

func TestAppConfigService_GetValidatesPlatform(t *testing.T) {
	svc := NewAppConfigService(memory.NewAppConfigStore())

	_, err := svc.GetConfig(context.Background(), "blackberry", "")
	assert.Error(t, err)
}

func TestAppConfigService_GetUnknownPlatformRowNotFound(t *testing.T) {
	svc := NewAppConfigService(memory.NewAppConfigStore())

	_, err := svc.GetConfig(context.Background(), types.PlatformAndroid, "")
	assert.Error(t, err)
}

func TestAppConfigService_UpdateIsPartial(t *testing.T) {
	configs := memory.NewAppConfigStore()
	svc := NewAppConfigService(configs)
	ctx := context.Background()

	seedAppConfig(t, configs, "ios-default", types.PlatformIOS, "")

	got, err := svc.UpdateConfig(ctx, "ios-default", &types.AppConfigUpdate{
		Features: &types.AppConfigFeatures{OfflineMode: false, PushNotifications: true, DarkMode: true},
	})
	require.NoError(t, err)

	assert.False(t, got.Features.OfflineMode)
	assert.True(t, got.Features.DarkMode)
	// Untouched sections keep their stored values.
	assert.Equal(t, 100, got.Limits.MaxOfflineStorage)
	assert.Equal(t, "https://api.example.com/v1", got.API.BaseURL)

	stored, err := configs.Get(ctx, "ios-default")
	require.NoError(t, err)
	assert.True(t, stored.Features.DarkMode)
}

func TestAppConfigService_UpdateUnknownConfig(t *testing.T) {
	svc := NewAppConfigService(memory.NewAppConfigStore())

	_, err := svc.UpdateConfig(context.Background(), "ghost", &types.AppConfigUpdate{})
	assert.Error(t, err)
}

var _ store.AppConfigStore = (*memory.AppConfigStore)(nil)
