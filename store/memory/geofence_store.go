package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// GeofenceStore is an in-memory store.GeofenceStore.
type GeofenceStore struct {
	mu        sync.Mutex
	geofences map[string]*types.Geofence
	presence  map[string]*types.GeofencePresence // userID + "\x00" + geofenceID
	events    map[string]*types.GeofenceEvent
}

// NewGeofenceStore creates an empty in-memory geofence store.
func NewGeofenceStore() *GeofenceStore {
	return &GeofenceStore{
		geofences: make(map[string]*types.Geofence),
		presence:  make(map[string]*types.GeofencePresence),
		events:    make(map[string]*types.GeofenceEvent),
	}
}

func presenceKey(userID, geofenceID string) string {
	return userID + "\x00" + geofenceID
}

func copyGeofence(g *types.Geofence) *types.Geofence {
	out := *g
	out.Actions = append([]types.GeofenceAction(nil), g.Actions...)
	return &out
}

func copyEvent(e *types.GeofenceEvent) *types.GeofenceEvent {
	out := *e
	out.Geofence = *copyGeofence(&e.Geofence)
	out.Actions = append([]types.TriggeredAction(nil), e.Actions...)
	return &out
}

func (s *GeofenceStore) Create(ctx context.Context, g *types.Geofence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.geofences[g.ID]; ok {
		return store.ErrConflict
	}
	s.geofences[g.ID] = copyGeofence(g)
	return nil
}

func (s *GeofenceStore) Get(ctx context.Context, id string) (*types.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.geofences[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyGeofence(g), nil
}

func (s *GeofenceStore) List(ctx context.Context) ([]*types.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, copyGeofence(g))
	}
	return out, nil
}

func (s *GeofenceStore) GetPresence(ctx context.Context, userID, geofenceID string) (*types.GeofencePresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presence[presenceKey(userID, geofenceID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *GeofenceStore) SetPresence(ctx context.Context, p *types.GeofencePresence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	s.presence[presenceKey(p.UserID, p.GeofenceID)] = &stored
	return nil
}

func (s *GeofenceStore) AppendEvent(ctx context.Context, e *types.GeofenceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return store.ErrConflict
	}
	s.events[e.ID] = copyEvent(e)
	return nil
}

func (s *GeofenceStore) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*types.GeofenceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.GeofenceEvent
	for _, e := range s.events {
		if userID != "" && e.UserID != userID {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
