package memory

import (
	"context"
	"sync"

	"github.com/marketloop/mobile-backend/pkg/geo"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// LocationStore is an in-memory store.LocationStore used by tests. The
// production implementation lives in store/redis.
type LocationStore struct {
	mu        sync.RWMutex
	locations map[string]types.LocationUpdate
}

// NewLocationStore creates an empty in-memory location store.
func NewLocationStore() *LocationStore {
	return &LocationStore{locations: make(map[string]types.LocationUpdate)}
}

func (s *LocationStore) SetLastKnown(ctx context.Context, userID string, loc types.LocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[userID] = loc
	return nil
}

func (s *LocationStore) GetLastKnown(ctx context.Context, userID string) (*types.LocationUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := loc
	return &out, nil
}

func (s *LocationStore) UsersWithin(ctx context.Context, lat, lng, radiusMeters float64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for userID, loc := range s.locations {
		if geo.Within(lat, lng, loc.Latitude, loc.Longitude, radiusMeters) {
			out = append(out, userID)
		}
	}
	return out, nil
}
