// Package memory provides mutex-guarded in-memory store implementations used
// by tests and single-node development setups. All reads return copies so
// callers can never mutate stored state in place.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// DeviceStore is an in-memory store.DeviceStore.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]*types.DeviceRegistration
}

// NewDeviceStore creates an empty in-memory device store.
func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[string]*types.DeviceRegistration)}
}

func copyDevice(d *types.DeviceRegistration) *types.DeviceRegistration {
	out := *d
	if d.Preferences.Notifications != nil {
		out.Preferences.Notifications = make(map[types.NotificationCategory]bool, len(d.Preferences.Notifications))
		for k, v := range d.Preferences.Notifications {
			out.Preferences.Notifications[k] = v
		}
	}
	out.Preferences.Categories = append([]string(nil), d.Preferences.Categories...)
	return &out
}

func (s *DeviceStore) Upsert(ctx context.Context, reg *types.DeviceRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.devices[reg.DeviceID]; ok {
		// Re-registration keeps the original install date and counters.
		reg.Metadata.InstallDate = existing.Metadata.InstallDate
		reg.Metadata.SessionCount = existing.Metadata.SessionCount
		reg.Metadata.CrashCount = existing.Metadata.CrashCount
		reg.CreatedAt = existing.CreatedAt
	}
	s.devices[reg.DeviceID] = copyDevice(reg)
	return nil
}

func (s *DeviceStore) Get(ctx context.Context, deviceID string) (*types.DeviceRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyDevice(d), nil
}

func (s *DeviceStore) ListByUser(ctx context.Context, userID string) ([]*types.DeviceRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.DeviceRegistration
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, copyDevice(d))
		}
	}
	return out, nil
}

func (s *DeviceStore) ListByUsers(ctx context.Context, userIDs []string) ([]*types.DeviceRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}

	var out []*types.DeviceRegistration
	for _, d := range s.devices {
		if _, ok := want[d.UserID]; ok {
			out = append(out, copyDevice(d))
		}
	}
	return out, nil
}

func (s *DeviceStore) ListByIDs(ctx context.Context, deviceIDs []string) ([]*types.DeviceRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.DeviceRegistration
	for _, id := range deviceIDs {
		if d, ok := s.devices[id]; ok {
			out = append(out, copyDevice(d))
		}
	}
	return out, nil
}

func (s *DeviceStore) Delete(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[deviceID]; !ok {
		return store.ErrNotFound
	}
	delete(s.devices, deviceID)
	return nil
}

func (s *DeviceStore) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	d.Metadata.LastActiveDate = at
	return nil
}

func (s *DeviceStore) IncrementSessionCount(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	d.Metadata.SessionCount++
	return nil
}

func (s *DeviceStore) IncrementCrashCount(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	d.Metadata.CrashCount++
	return nil
}
