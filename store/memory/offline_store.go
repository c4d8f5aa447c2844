package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// OfflineStore is an in-memory store.OfflineStore. The single mutex makes
// UpdateCAS a true compare-and-swap: of two racing updates with the same
// expected version, exactly one commits.
type OfflineStore struct {
	mu    sync.Mutex
	items map[string]*types.OfflineDataItem
}

// NewOfflineStore creates an empty in-memory offline store.
func NewOfflineStore() *OfflineStore {
	return &OfflineStore{items: make(map[string]*types.OfflineDataItem)}
}

func copyItem(i *types.OfflineDataItem) *types.OfflineDataItem {
	out := *i
	out.Data = append(json.RawMessage(nil), i.Data...)
	out.Dependencies = append([]string(nil), i.Dependencies...)
	if i.ExpiresAt != nil {
		t := *i.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

func (s *OfflineStore) Create(ctx context.Context, item *types.OfflineDataItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return store.ErrConflict
	}
	stored := copyItem(item)
	stored.Version = 1
	stored.LastModified = time.Now().UTC()
	s.items[item.ID] = stored

	item.Version = stored.Version
	item.LastModified = stored.LastModified
	return nil
}

func (s *OfflineStore) Get(ctx context.Context, id string) (*types.OfflineDataItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyItem(item), nil
}

func (s *OfflineStore) List(ctx context.Context, userID string, dataType types.OfflineDataType) ([]*types.OfflineDataItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.OfflineDataItem
	for _, item := range s.items {
		if userID != "" && item.UserID != userID {
			continue
		}
		if dataType != "" && item.Type != dataType {
			continue
		}
		out = append(out, copyItem(item))
	}
	return out, nil
}

func (s *OfflineStore) UpdateCAS(ctx context.Context, id string, data json.RawMessage, expectedVersion int) (*types.OfflineDataItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if item.Version != expectedVersion {
		// Loser of the race gets the current server state back.
		return copyItem(item), store.ErrConflict
	}
	item.Data = append(json.RawMessage(nil), data...)
	item.Version++
	item.LastModified = time.Now().UTC()
	item.Size = len(data)
	return copyItem(item), nil
}

func (s *OfflineStore) Delete(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}

	dependents := s.dependentsLocked(id)
	if len(dependents) > 0 {
		if !force {
			return store.ErrDependency
		}
		// Force cascades removal of the dependency edge, never of the
		// dependent records themselves.
		for _, depID := range dependents {
			dep := s.items[depID]
			kept := dep.Dependencies[:0]
			for _, d := range dep.Dependencies {
				if d != id {
					kept = append(kept, d)
				}
			}
			dep.Dependencies = kept
		}
	}

	delete(s.items, id)
	return nil
}

func (s *OfflineStore) Dependents(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dependentsLocked(id), nil
}

func (s *OfflineStore) dependentsLocked(id string) []string {
	var out []string
	for _, item := range s.items {
		for _, dep := range item.Dependencies {
			if dep == id {
				out = append(out, item.ID)
				break
			}
		}
	}
	return out
}

func (s *OfflineStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, item := range s.items {
		if item.Expired(now) {
			delete(s.items, id)
			purged++
		}
	}
	return purged, nil
}
