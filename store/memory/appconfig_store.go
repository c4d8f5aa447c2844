package memory

import (
	"context"
	"sync"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// AppConfigStore is an in-memory store.AppConfigStore.
type AppConfigStore struct {
	mu      sync.Mutex
	configs map[string]*types.MobileAppConfig
}

// NewAppConfigStore creates an empty in-memory app config store.
func NewAppConfigStore() *AppConfigStore {
	return &AppConfigStore{configs: make(map[string]*types.MobileAppConfig)}
}

func copyAppConfig(cfg *types.MobileAppConfig) *types.MobileAppConfig {
	out := *cfg
	out.Analytics.Events = append([]string(nil), cfg.Analytics.Events...)
	return &out
}

func (s *AppConfigStore) Create(ctx context.Context, cfg *types.MobileAppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[cfg.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range s.configs {
		if existing.Platform == cfg.Platform && existing.Version == cfg.Version {
			return store.ErrConflict
		}
	}
	s.configs[cfg.ID] = copyAppConfig(cfg)
	return nil
}

func (s *AppConfigStore) Get(ctx context.Context, id string) (*types.MobileAppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAppConfig(cfg), nil
}

func (s *AppConfigStore) GetByPlatform(ctx context.Context, platform types.Platform, version string) (*types.MobileAppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cfg := range s.configs {
		if cfg.Platform == platform && cfg.Version == version {
			return copyAppConfig(cfg), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *AppConfigStore) Update(ctx context.Context, cfg *types.MobileAppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[cfg.ID]; !ok {
		return store.ErrNotFound
	}
	s.configs[cfg.ID] = copyAppConfig(cfg)
	return nil
}
