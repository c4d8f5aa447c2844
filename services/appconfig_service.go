package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// AppConfigService serves the remote configuration clients fetch on startup
// and applies operator edits. Lookups prefer a config pinned to the exact
// (platform, version) pair and fall back to the platform-wide default.
type AppConfigService struct {
	configs store.AppConfigStore
	logger  *zap.SugaredLogger
}

func NewAppConfigService(configs store.AppConfigStore) *AppConfigService {
	return &AppConfigService{
		configs: configs,
		logger:  logger.GetLogger().Named("appconfig-service"),
	}
}

// GetConfig returns the configuration for a platform, honoring a pinned
// per-version override when one exists.
func (s *AppConfigService) GetConfig(ctx context.Context, platform types.Platform, version string) (*types.MobileAppConfig, error) {
	if !platform.Valid() {
		return nil, apperrors.ValidationFailed("Invalid platform", string(platform))
	}

	cfg, err := s.configs.GetByPlatform(ctx, platform, version)
	if errors.Is(err, store.ErrNotFound) && version != "" {
		cfg, err = s.configs.GetByPlatform(ctx, platform, "")
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("App config", string(platform))
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return cfg, nil
}

// UpdateConfig applies a partial edit to one config record. Sections absent
// from the update keep their stored values.
func (s *AppConfigService) UpdateConfig(ctx context.Context, id string, update *types.AppConfigUpdate) (*types.MobileAppConfig, error) {
	cfg, err := s.configs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("App config", id)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	if update.Features != nil {
		cfg.Features = *update.Features
	}
	if update.Limits != nil {
		cfg.Limits = *update.Limits
	}
	if update.API != nil {
		cfg.API = *update.API
	}
	if update.UI != nil {
		cfg.UI = *update.UI
	}
	if update.Analytics != nil {
		cfg.Analytics = *update.Analytics
	}
	if update.Security != nil {
		cfg.Security = *update.Security
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.configs.Update(ctx, cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("App config", id)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	s.logger.Infow("App config updated", "configID", id, "platform", cfg.Platform)
	return cfg, nil
}
