package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDueNotification(t *testing.T, f *dispatchFixture, id string) {
	t.Helper()
	require.NoError(t, f.notifications.Create(context.Background(), &types.PushNotification{
		ID:        id,
		UserID:    "user-1",
		Type:      types.NotificationTypeOrder,
		Title:     "Order shipped",
		Body:      "Finally on its way",
		Priority:  types.PriorityNormal,
		Status:    types.StatusScheduled,
		Scheduled: &types.NotificationSchedule{SendAt: time.Now().UTC().Add(-time.Minute)},
		CreatedAt: time.Now().UTC(),
	}))
}

func TestScheduler_RunOnceDispatchesDue(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	seedDueNotification(t, f, "notif-1")

	s := NewScheduler(f.notifications, f.service, nil, f.service.cfg)
	s.runOnce(ctx)

	got, err := f.service.GetNotification(ctx, "notif-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSent, got.Status)
	assert.Equal(t, []string{"token-device-1"}, f.transport.sentTokens())
}

func TestScheduler_RunOnceSkipsFutureNotifications(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	require.NoError(t, f.notifications.Create(ctx, &types.PushNotification{
		ID:        "notif-future",
		UserID:    "user-1",
		Type:      types.NotificationTypeOrder,
		Title:     "Order shipped",
		Body:      "Not yet",
		Status:    types.StatusScheduled,
		Scheduled: &types.NotificationSchedule{SendAt: time.Now().UTC().Add(time.Hour)},
		CreatedAt: time.Now().UTC(),
	}))

	s := NewScheduler(f.notifications, f.service, nil, f.service.cfg)
	s.runOnce(ctx)

	got, err := f.service.GetNotification(ctx, "notif-future")
	require.NoError(t, err)
	assert.Equal(t, types.StatusScheduled, got.Status)
	assert.Empty(t, f.transport.sentTokens())
}

func TestScheduler_LostClaimSkipsDispatch(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	seedDueNotification(t, f, "notif-1")

	client, mock := redismock.NewClientMock()
	cfg := f.service.cfg
	cfg.SchedulerIntervalSeconds = 15
	mock.ExpectSetNX("scheduler_claim:notif-1", "1", 30*time.Second).SetVal(false)

	s := NewScheduler(f.notifications, f.service, client, cfg)
	s.runOnce(ctx)

	got, err := f.service.GetNotification(ctx, "notif-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusScheduled, got.Status)
	assert.Empty(t, f.transport.sentTokens())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_ClaimWonDispatchesAndReleases(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	seedDueNotification(t, f, "notif-1")

	client, mock := redismock.NewClientMock()
	cfg := f.service.cfg
	cfg.SchedulerIntervalSeconds = 15
	mock.ExpectSetNX("scheduler_claim:notif-1", "1", 30*time.Second).SetVal(true)
	mock.ExpectDel("scheduler_claim:notif-1").SetVal(1)

	s := NewScheduler(f.notifications, f.service, client, cfg)
	s.runOnce(ctx)

	got, err := f.service.GetNotification(ctx, "notif-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSent, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_RedisFailureFallsBackToStatusClaim(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	seedDueNotification(t, f, "notif-1")

	client, mock := redismock.NewClientMock()
	cfg := f.service.cfg
	cfg.SchedulerIntervalSeconds = 15
	mock.ExpectSetNX("scheduler_claim:notif-1", "1", 30*time.Second).SetErr(assert.AnError)
	mock.ExpectDel("scheduler_claim:notif-1").SetVal(1)

	s := NewScheduler(f.notifications, f.service, client, cfg)
	s.runOnce(ctx)

	// The status CAS inside Dispatch is the second gate, so a Redis outage
	// degrades to at-least-once scanning without duplicate sends.
	got, err := f.service.GetNotification(ctx, "notif-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSent, got.Status)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newDispatchFixture(t)

	cfg := f.service.cfg
	cfg.SchedulerIntervalSeconds = 1
	s := NewScheduler(f.notifications, f.service, nil, cfg)

	s.Start()
	s.Start() // second start is a no-op
	s.Stop()
	s.Stop() // second stop is a no-op
}
