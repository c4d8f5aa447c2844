package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// DeviceService owns the device registry: registration, partial updates,
// preference changes and removal.
type DeviceService struct {
	devices store.DeviceStore
	logger  *zap.SugaredLogger
}

func NewDeviceService(devices store.DeviceStore) *DeviceService {
	return &DeviceService{
		devices: devices,
		logger:  logger.GetLogger().Named("device-service"),
	}
}

// Register creates or replaces a device registration. Re-registering an
// existing device rotates mutable fields but keeps the original install date
// and usage counters.
func (s *DeviceService) Register(ctx context.Context, reg *types.DeviceRegistration) (*types.DeviceRegistration, error) {
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if reg.Metadata.InstallDate.IsZero() {
		reg.Metadata.InstallDate = now
	}
	reg.Metadata.LastActiveDate = now
	if reg.TimeZone == "" {
		reg.TimeZone = "UTC"
	}
	reg.CreatedAt = now
	reg.UpdatedAt = now

	if err := s.devices.Upsert(ctx, reg); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	stored, err := s.devices.Get(ctx, reg.DeviceID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.logger.Infow("Device registered",
		"deviceID", stored.DeviceID,
		"userID", stored.UserID,
		"platform", stored.Platform,
		"token", logger.MaskToken(stored.DeviceToken))
	return stored, nil
}

// Get returns one registration by device ID.
func (s *DeviceService) Get(ctx context.Context, deviceID string) (*types.DeviceRegistration, error) {
	reg, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Device", deviceID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return reg, nil
}

// ListByUser returns all registrations owned by a user.
func (s *DeviceService) ListByUser(ctx context.Context, userID string) ([]*types.DeviceRegistration, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return devices, nil
}

// Update applies a partial update to an existing registration. Nil fields
// are left untouched.
func (s *DeviceService) Update(ctx context.Context, deviceID string, update *types.DeviceUpdate) (*types.DeviceRegistration, error) {
	reg, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if update.DeviceToken != nil {
		if *update.DeviceToken == "" {
			return nil, apperrors.ValidationFailed("Invalid device token", "deviceToken must not be empty")
		}
		reg.DeviceToken = *update.DeviceToken
	}
	if update.AppVersion != nil {
		reg.AppVersion = *update.AppVersion
	}
	if update.OSVersion != nil {
		reg.OSVersion = *update.OSVersion
	}
	if update.TimeZone != nil {
		if _, err := time.LoadLocation(*update.TimeZone); err != nil {
			return nil, apperrors.ValidationFailed("Invalid time zone", *update.TimeZone)
		}
		reg.TimeZone = *update.TimeZone
	}
	if update.Language != nil {
		reg.Language = *update.Language
	}
	if update.PushEnabled != nil {
		reg.PushEnabled = *update.PushEnabled
	}
	if update.Preferences != nil {
		if err := validateQuietHours(update.Preferences.QuietHours); err != nil {
			return nil, err
		}
		reg.Preferences = *update.Preferences
	}
	reg.UpdatedAt = time.Now().UTC()

	if err := s.devices.Upsert(ctx, reg); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return reg, nil
}

// UpdatePreferences replaces a device's notification preferences.
func (s *DeviceService) UpdatePreferences(ctx context.Context, deviceID string, prefs *types.DevicePreferences) (*types.DeviceRegistration, error) {
	return s.Update(ctx, deviceID, &types.DeviceUpdate{Preferences: prefs})
}

// Delete removes a registration. Removed devices receive no further
// notifications.
func (s *DeviceService) Delete(ctx context.Context, deviceID string) error {
	if err := s.devices.Delete(ctx, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Device", deviceID)
		}
		return apperrors.NewDatabaseError(err)
	}
	s.logger.Infow("Device unregistered", "deviceID", deviceID)
	return nil
}

// TouchActivity refreshes the device's last-active timestamp. Missing
// devices are ignored; activity beacons race with unregistration.
func (s *DeviceService) TouchActivity(ctx context.Context, deviceID string) {
	if err := s.devices.TouchLastActive(ctx, deviceID, time.Now().UTC()); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warnw("Failed to touch device activity", "deviceID", deviceID, "error", err)
		}
	}
}

func validateRegistration(reg *types.DeviceRegistration) error {
	if reg.DeviceID == "" {
		return apperrors.ValidationFailed("Invalid registration", "deviceId is required")
	}
	if reg.UserID == "" {
		return apperrors.ValidationFailed("Invalid registration", "userId is required")
	}
	if !reg.Platform.Valid() {
		return apperrors.ValidationFailed("Invalid registration",
			fmt.Sprintf("unknown platform %q", reg.Platform))
	}
	if reg.DeviceToken == "" {
		return apperrors.ValidationFailed("Invalid registration", "deviceToken is required")
	}
	if reg.TimeZone != "" {
		if _, err := time.LoadLocation(reg.TimeZone); err != nil {
			return apperrors.ValidationFailed("Invalid time zone", reg.TimeZone)
		}
	}
	return validateQuietHours(reg.Preferences.QuietHours)
}

func validateQuietHours(qh types.QuietHours) error {
	if !qh.Enabled {
		return nil
	}
	for _, v := range []string{qh.Start, qh.End} {
		if _, err := time.Parse("15:04", v); err != nil {
			return apperrors.ValidationFailed("Invalid quiet hours",
				fmt.Sprintf("%q is not a valid HH:mm time", v))
		}
	}
	return nil
}
