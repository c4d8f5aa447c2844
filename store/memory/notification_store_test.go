package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(id string, status types.NotificationStatus) *types.PushNotification {
	return &types.PushNotification{
		ID:        id,
		Type:      types.NotificationTypePromotion,
		Title:     "Sale",
		Body:      "Everything must go",
		Priority:  types.PriorityNormal,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNotificationStore_TransitionStatusClaimsOnce(t *testing.T) {
	s := NewNotificationStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newNotification("notif-1", types.StatusScheduled)))

	claimed, err := s.TransitionStatus(ctx, "notif-1", types.StatusScheduled, types.StatusSending)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim sees the row already moved.
	claimed, err = s.TransitionStatus(ctx, "notif-1", types.StatusScheduled, types.StatusSending)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestNotificationStore_ListDue(t *testing.T) {
	s := NewNotificationStore()
	ctx := context.Background()
	now := time.Now().UTC()

	due := newNotification("due-1", types.StatusScheduled)
	due.Scheduled = &types.NotificationSchedule{SendAt: now.Add(-time.Minute)}
	notYet := newNotification("later-1", types.StatusScheduled)
	notYet.Scheduled = &types.NotificationSchedule{SendAt: now.Add(time.Hour)}
	alreadySent := newNotification("sent-1", types.StatusSent)
	alreadySent.Scheduled = &types.NotificationSchedule{SendAt: now.Add(-time.Hour)}

	require.NoError(t, s.Create(ctx, due))
	require.NoError(t, s.Create(ctx, notYet))
	require.NoError(t, s.Create(ctx, alreadySent))

	got, err := s.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "due-1", got[0].ID)
}

func TestNotificationStore_RecordDeliveryFirstOutcomeWins(t *testing.T) {
	s := NewNotificationStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newNotification("notif-1", types.StatusSending)))

	first := &types.DeliveryRecord{
		NotificationID: "notif-1",
		DeviceID:       "device-1",
		Outcome:        types.DeliveryDelivered,
		Attempts:       1,
		CompletedAt:    time.Now().UTC(),
	}
	replay := *first
	replay.Outcome = types.DeliveryFailed

	require.NoError(t, s.RecordDelivery(ctx, first))
	require.NoError(t, s.RecordDelivery(ctx, &replay))

	recs, err := s.ListDeliveries(ctx, "notif-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, types.DeliveryDelivered, recs[0].Outcome)
}

func TestNotificationStore_CountersAndErrorHistogram(t *testing.T) {
	s := NewNotificationStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newNotification("notif-1", types.StatusSending)))

	require.NoError(t, s.IncrementCounter(ctx, "notif-1", store.CounterSent, 3))
	require.NoError(t, s.IncrementCounter(ctx, "notif-1", store.CounterDelivered, 2))
	require.NoError(t, s.RecordErrorCode(ctx, "notif-1", "invalid_token", "token rejected"))
	require.NoError(t, s.RecordErrorCode(ctx, "notif-1", "invalid_token", "token rejected"))

	got, err := s.Get(ctx, "notif-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Analytics.SentCount)
	assert.Equal(t, 2, got.Analytics.DeliveredCount)
	require.Len(t, got.Analytics.Errors, 1)
	assert.Equal(t, 2, got.Analytics.Errors[0].Count)
}
