package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// DeviceStore is the pgx implementation of store.DeviceStore.
type DeviceStore struct {
	db DB
}

func NewDeviceStore(db DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `device_id, user_id, platform, device_token, app_version, os_version,
	device_model, time_zone, language, push_enabled, preferences,
	install_date, last_active, session_count, crash_count, created_at, updated_at`

func (s *DeviceStore) Upsert(ctx context.Context, reg *types.DeviceRegistration) error {
	prefs, err := json.Marshal(reg.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	// Re-registration keeps install_date, session_count, crash_count and
	// created_at from the existing row.
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (device_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			device_token = EXCLUDED.device_token,
			app_version = EXCLUDED.app_version,
			os_version = EXCLUDED.os_version,
			device_model = EXCLUDED.device_model,
			time_zone = EXCLUDED.time_zone,
			language = EXCLUDED.language,
			push_enabled = EXCLUDED.push_enabled,
			preferences = EXCLUDED.preferences,
			last_active = EXCLUDED.last_active,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, query,
		reg.DeviceID, reg.UserID, string(reg.Platform), reg.DeviceToken,
		reg.AppVersion, reg.OSVersion, reg.DeviceModel, reg.TimeZone,
		reg.Language, reg.PushEnabled, prefs,
		reg.Metadata.InstallDate, reg.Metadata.LastActiveDate,
		reg.Metadata.SessionCount, reg.Metadata.CrashCount,
		reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (s *DeviceStore) Get(ctx context.Context, deviceID string) (*types.DeviceRegistration, error) {
	row := s.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID)
	reg, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return reg, nil
}

func (s *DeviceStore) ListByUser(ctx context.Context, userID string) ([]*types.DeviceRegistration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY device_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices by user: %w", err)
	}
	return collectDevices(rows)
}

func (s *DeviceStore) ListByUsers(ctx context.Context, userIDs []string) ([]*types.DeviceRegistration, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = ANY($1) ORDER BY device_id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices by users: %w", err)
	}
	return collectDevices(rows)
}

func (s *DeviceStore) ListByIDs(ctx context.Context, deviceIDs []string) ([]*types.DeviceRegistration, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ANY($1) ORDER BY device_id`, deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices by ids: %w", err)
	}
	return collectDevices(rows)
}

func (s *DeviceStore) Delete(ctx context.Context, deviceID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DeviceStore) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE devices SET last_active = $2 WHERE device_id = $1`, deviceID, at)
	if err != nil {
		return fmt.Errorf("failed to touch last active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DeviceStore) IncrementSessionCount(ctx context.Context, deviceID string) error {
	return s.incrementCounter(ctx, deviceID, "session_count")
}

func (s *DeviceStore) IncrementCrashCount(ctx context.Context, deviceID string) error {
	return s.incrementCounter(ctx, deviceID, "crash_count")
}

func (s *DeviceStore) incrementCounter(ctx context.Context, deviceID, column string) error {
	// column is one of two fixed identifiers, never user input.
	query := fmt.Sprintf(`UPDATE devices SET %s = %s + 1 WHERE device_id = $1`, column, column)
	tag, err := s.db.Exec(ctx, query, deviceID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*types.DeviceRegistration, error) {
	var (
		reg      types.DeviceRegistration
		platform string
		prefs    []byte
	)
	err := row.Scan(&reg.DeviceID, &reg.UserID, &platform, &reg.DeviceToken,
		&reg.AppVersion, &reg.OSVersion, &reg.DeviceModel, &reg.TimeZone,
		&reg.Language, &reg.PushEnabled, &prefs,
		&reg.Metadata.InstallDate, &reg.Metadata.LastActiveDate,
		&reg.Metadata.SessionCount, &reg.Metadata.CrashCount,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Platform = types.Platform(platform)
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &reg.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	return &reg, nil
}

func collectDevices(rows pgx.Rows) ([]*types.DeviceRegistration, error) {
	defer rows.Close()

	var out []*types.DeviceRegistration
	for rows.Next() {
		reg, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device rows: %w", err)
	}
	return out, nil
}
