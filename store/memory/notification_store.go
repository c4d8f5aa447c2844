package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// NotificationStore is an in-memory store.NotificationStore.
type NotificationStore struct {
	mu            sync.Mutex
	notifications map[string]*types.PushNotification
	deliveries    map[string]map[string]*types.DeliveryRecord // notificationID -> deviceID -> record
}

// NewNotificationStore creates an empty in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		notifications: make(map[string]*types.PushNotification),
		deliveries:    make(map[string]map[string]*types.DeliveryRecord),
	}
}

func copyNotification(n *types.PushNotification) *types.PushNotification {
	out := *n
	out.ActionButtons = append([]types.ActionButton(nil), n.ActionButtons...)
	out.Analytics.Errors = append([]types.NotificationError(nil), n.Analytics.Errors...)
	if n.Scheduled != nil {
		sched := *n.Scheduled
		out.Scheduled = &sched
	}
	if n.SentAt != nil {
		t := *n.SentAt
		out.SentAt = &t
	}
	return &out
}

func (s *NotificationStore) Create(ctx context.Context, n *types.PushNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; ok {
		return store.ErrConflict
	}
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, id string) (*types.PushNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyNotification(n), nil
}

func (s *NotificationStore) Update(ctx context.Context, n *types.PushNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; !ok {
		return store.ErrNotFound
	}
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *NotificationStore) TransitionStatus(ctx context.Context, id string, from, to types.NotificationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if n.Status != from {
		return false, nil
	}
	n.Status = to
	return true, nil
}

func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.notifications, id)
	delete(s.deliveries, id)
	return nil
}

func (s *NotificationStore) ListDue(ctx context.Context, now time.Time) ([]*types.PushNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.PushNotification
	for _, n := range s.notifications {
		if n.Status == types.StatusScheduled && n.Scheduled != nil && !n.Scheduled.SendAt.After(now) {
			out = append(out, copyNotification(n))
		}
	}
	return out, nil
}

func (s *NotificationStore) ListHistory(ctx context.Context, userID, deviceID string, limit int) ([]*types.PushNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.PushNotification
	for _, n := range s.notifications {
		if userID != "" && n.UserID != userID {
			continue
		}
		if deviceID != "" && n.DeviceID != deviceID {
			continue
		}
		out = append(out, copyNotification(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDevice, ok := s.deliveries[rec.NotificationID]
	if !ok {
		byDevice = make(map[string]*types.DeliveryRecord)
		s.deliveries[rec.NotificationID] = byDevice
	}
	// First terminal outcome wins; replays are no-ops.
	if _, exists := byDevice[rec.DeviceID]; exists {
		return nil
	}
	stored := *rec
	byDevice[rec.DeviceID] = &stored
	return nil
}

func (s *NotificationStore) ListDeliveries(ctx context.Context, notificationID string) ([]*types.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.DeliveryRecord
	for _, rec := range s.deliveries[notificationID] {
		r := *rec
		out = append(out, &r)
	}
	return out, nil
}

func (s *NotificationStore) IncrementCounter(ctx context.Context, id string, counter string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	switch counter {
	case store.CounterSent:
		n.Analytics.SentCount += delta
	case store.CounterDelivered:
		n.Analytics.DeliveredCount += delta
	case store.CounterOpened:
		n.Analytics.OpenedCount += delta
	case store.CounterClicked:
		n.Analytics.ClickedCount += delta
	case store.CounterDismissed:
		n.Analytics.DismissedCount += delta
	}
	return nil
}

func (s *NotificationStore) RecordErrorCode(ctx context.Context, id string, code string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	for i := range n.Analytics.Errors {
		if n.Analytics.Errors[i].Code == code {
			n.Analytics.Errors[i].Count++
			return nil
		}
	}
	n.Analytics.Errors = append(n.Analytics.Errors, types.NotificationError{
		Code:    code,
		Message: message,
		Count:   1,
	})
	return nil
}
