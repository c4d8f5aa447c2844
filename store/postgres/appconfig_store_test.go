package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfigStore_GetByPlatform(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	doc := []byte(`{
		"features": {"offlineMode": true},
		"limits": {"maxOfflineStorage": 100},
		"api": {"baseUrl": "https://api.example.com/v1", "retryAttempts": 3},
		"ui": {"primaryColor": "#1a73e8"},
		"analytics": {"enabled": true},
		"security": {"certificatePinning": true}
	}`)
	updatedAt := time.Now().UTC()

	mockDB.ExpectQuery("SELECT id, platform, version, config, updated_at").
		WithArgs("ios", "2.1.0").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "platform", "version", "config", "updated_at"}).
			AddRow("ios-2.1.0", "ios", "2.1.0", doc, updatedAt))

	s := NewAppConfigStore(mockDB)
	cfg, err := s.GetByPlatform(context.Background(), types.PlatformIOS, "2.1.0")
	require.NoError(t, err)
	assert.Equal(t, "ios-2.1.0", cfg.ID)
	assert.True(t, cfg.Features.OfflineMode)
	assert.Equal(t, 100, cfg.Limits.MaxOfflineStorage)
	assert.Equal(t, 3, cfg.API.RetryAttempts)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestAppConfigStore_GetByPlatformMissing(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT id, platform, version, config, updated_at").
		WithArgs("web", "").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "platform", "version", "config", "updated_at"}))

	s := NewAppConfigStore(mockDB)
	_, err = s.GetByPlatform(context.Background(), types.PlatformWeb, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestAppConfigStore_UpdateMissing(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE app_configs").
		WithArgs("ghost", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s := NewAppConfigStore(mockDB)
	err = s.Update(context.Background(), &types.MobileAppConfig{ID: "ghost"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
