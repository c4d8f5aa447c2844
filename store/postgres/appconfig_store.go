package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// AppConfigStore is the pgx implementation of store.AppConfigStore. The
// sectioned document (features, limits, api, ui, analytics, security) lives
// in a single JSONB column; platform and version are relational so the
// lookup path stays indexed.
type AppConfigStore struct {
	db DB
}

func NewAppConfigStore(db DB) *AppConfigStore {
	return &AppConfigStore{db: db}
}

// appConfigDocument is the JSONB payload minus the relational columns.
type appConfigDocument struct {
	Features  types.AppConfigFeatures  `json:"features"`
	Limits    types.AppConfigLimits    `json:"limits"`
	API       types.AppConfigAPI       `json:"api"`
	UI        types.AppConfigUI        `json:"ui"`
	Analytics types.AppConfigAnalytics `json:"analytics"`
	Security  types.AppConfigSecurity  `json:"security"`
}

func (s *AppConfigStore) Create(ctx context.Context, cfg *types.MobileAppConfig) error {
	doc, err := marshalAppConfigDocument(cfg)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO app_configs (id, platform, version, config, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cfg.ID, string(cfg.Platform), cfg.Version, doc, cfg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to create app config: %w", err)
	}
	return nil
}

func (s *AppConfigStore) Get(ctx context.Context, id string) (*types.MobileAppConfig, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, platform, version, config, updated_at
		FROM app_configs WHERE id = $1`, id)
	cfg, err := scanAppConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get app config: %w", err)
	}
	return cfg, nil
}

func (s *AppConfigStore) GetByPlatform(ctx context.Context, platform types.Platform, version string) (*types.MobileAppConfig, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, platform, version, config, updated_at
		FROM app_configs WHERE platform = $1 AND version = $2`,
		string(platform), version)
	cfg, err := scanAppConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get app config by platform: %w", err)
	}
	return cfg, nil
}

func (s *AppConfigStore) Update(ctx context.Context, cfg *types.MobileAppConfig) error {
	doc, err := marshalAppConfigDocument(cfg)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE app_configs
		SET config = $2, updated_at = $3
		WHERE id = $1`,
		cfg.ID, doc, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update app config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func marshalAppConfigDocument(cfg *types.MobileAppConfig) ([]byte, error) {
	doc, err := json.Marshal(appConfigDocument{
		Features:  cfg.Features,
		Limits:    cfg.Limits,
		API:       cfg.API,
		UI:        cfg.UI,
		Analytics: cfg.Analytics,
		Security:  cfg.Security,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal app config document: %w", err)
	}
	return doc, nil
}

func scanAppConfig(row pgx.Row) (*types.MobileAppConfig, error) {
	var (
		cfg      types.MobileAppConfig
		platform string
		raw      []byte
	)
	if err := row.Scan(&cfg.ID, &platform, &cfg.Version, &raw, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	cfg.Platform = types.Platform(platform)

	var doc appConfigDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app config document: %w", err)
	}
	cfg.Features = doc.Features
	cfg.Limits = doc.Limits
	cfg.API = doc.API
	cfg.UI = doc.UI
	cfg.Analytics = doc.Analytics
	cfg.Security = doc.Security
	return &cfg, nil
}
