package services

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/config"
	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeofenceFixture(t *testing.T, dispatcher *DispatchService) (*GeofenceService, *memory.GeofenceStore) {
	t.Helper()
	geofences := memory.NewGeofenceStore()
	svc := NewGeofenceService(geofences, memory.NewLocationStore(), dispatcher,
		config.GeofenceConfig{DwellThresholdSeconds: 300})
	return svc, geofences
}

func createStoreFence(t *testing.T, svc *GeofenceService, actions ...types.GeofenceAction) *types.Geofence {
	t.Helper()
	g, err := svc.CreateGeofence(context.Background(), &types.CreateGeofenceRequest{
		Name:      "Downtown Store",
		Latitude:  40.7128,
		Longitude: -74.0060,
		Radius:    200,
		Type:      types.GeofenceTypeStore,
		Actions:   actions,
	})
	require.NoError(t, err)
	return g
}

func atFence(deviceID string, ts time.Time) *types.LocationUpdate {
	return &types.LocationUpdate{
		Latitude:  40.7128,
		Longitude: -74.0060,
		Accuracy:  10,
		Timestamp: ts,
		DeviceID:  deviceID,
	}
}

func awayFromFence(deviceID string, ts time.Time) *types.LocationUpdate {
	return &types.LocationUpdate{
		Latitude:  40.7300,
		Longitude: -74.0060,
		Accuracy:  10,
		Timestamp: ts,
		DeviceID:  deviceID,
	}
}

func TestGeofenceService_CreateValidation(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()

	_, err := svc.CreateGeofence(ctx, &types.CreateGeofenceRequest{
		Name: "bad", Latitude: 0, Longitude: 0, Radius: 100, Type: "spaceport",
	})
	assert.Error(t, err)

	_, err = svc.CreateGeofence(ctx, &types.CreateGeofenceRequest{
		Name: "bad", Latitude: 0, Longitude: 0, Radius: -5, Type: types.GeofenceTypeStore,
	})
	assert.Error(t, err)

	_, err = svc.CreateGeofence(ctx, &types.CreateGeofenceRequest{
		Name: "bad", Latitude: 95, Longitude: 0, Radius: 100, Type: types.GeofenceTypeStore,
	})
	assert.Error(t, err)
}

func TestGeofenceService_EnterExitTransitions(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()
	createStoreFence(t, svc)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", base))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.GeofenceEnter, events[0].Type)

	// Staying inside below the dwell threshold emits nothing.
	events, err = svc.ProcessLocation(ctx, "user-1", atFence("device-1", base.Add(time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = svc.ProcessLocation(ctx, "user-1", awayFromFence("device-1", base.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.GeofenceExit, events[0].Type)

	// Staying outside is quiet.
	events, err = svc.ProcessLocation(ctx, "user-1", awayFromFence("device-1", base.Add(3*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGeofenceService_DwellFiresOncePerStay(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()
	createStoreFence(t, svc)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", base))
	require.NoError(t, err)

	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", base.Add(6*time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.GeofenceDwell, events[0].Type)

	// A longer continuous stay never repeats the dwell.
	events, err = svc.ProcessLocation(ctx, "user-1", atFence("device-1", base.Add(30*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)

	// Leaving and re-entering rearms it.
	_, err = svc.ProcessLocation(ctx, "user-1", awayFromFence("device-1", base.Add(31*time.Minute)))
	require.NoError(t, err)
	_, err = svc.ProcessLocation(ctx, "user-1", atFence("device-1", base.Add(32*time.Minute)))
	require.NoError(t, err)

	events, err = svc.ProcessLocation(ctx, "user-1", atFence("device-1", base.Add(40*time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.GeofenceDwell, events[0].Type)
}

func TestGeofenceService_PresenceIsPerUser(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()
	createStoreFence(t, svc)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", base))
	require.NoError(t, err)
	require.Len(t, events, 1)

	// A different user entering gets their own enter event.
	events, err = svc.ProcessLocation(ctx, "user-2", atFence("device-2", base.Add(time.Second)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.GeofenceEnter, events[0].Type)
}

func TestGeofenceService_EnterActionSendsNotification(t *testing.T) {
	f := newDispatchFixture(t)
	svc, _ := newGeofenceFixture(t, f.service)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	createStoreFence(t, svc, types.GeofenceAction{
		Trigger: types.GeofenceEnter,
		Type:    types.GeofenceActionPromotion,
		Data:    map[string]any{"title": "Welcome back", "body": "20% off today"},
	})

	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", time.Now().UTC()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].Actions, 1)
	assert.True(t, events[0].Actions[0].Executed)

	require.Len(t, f.transport.sent, 1)
	assert.Equal(t, "Welcome back", f.transport.sent[0].Title)
	assert.Equal(t, events[0].Geofence.ID, f.transport.sent[0].Data["geofenceId"])
}

func TestGeofenceService_ReplayedUpdateRunsActionsOnce(t *testing.T) {
	f := newDispatchFixture(t)
	svc, geofences := newGeofenceFixture(t, f.service)
	ctx := context.Background()

	registerDevice(t, f.devices, "device-1", "user-1")
	createStoreFence(t, svc, types.GeofenceAction{
		Trigger: types.GeofenceEnter,
		Type:    types.GeofenceActionPromotion,
		Data:    map[string]any{"title": "Welcome back", "body": "20% off today"},
	})

	at := time.Now().UTC()
	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", at))
	require.NoError(t, err)
	require.Len(t, events, 1)

	// The client retries the identical update. The presence record already
	// says inside, so no event is emitted and no second push goes out.
	events, err = svc.ProcessLocation(ctx, "user-1", atFence("device-1", at))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Len(t, f.transport.sent, 1)

	logged, err := geofences.ListEvents(ctx, "user-1", at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestGeofenceService_AnalyticsActionMarksEvent(t *testing.T) {
	svc, geofences := newGeofenceFixture(t, nil)
	ctx := context.Background()

	createStoreFence(t, svc, types.GeofenceAction{
		Trigger: types.GeofenceExit,
		Type:    types.GeofenceActionAnalytics,
	})

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", base))
	require.NoError(t, err)

	events, err := svc.ProcessLocation(ctx, "user-1", awayFromFence("device-1", base.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].Actions, 1)
	assert.True(t, events[0].Actions[0].Executed)

	// The event log holds the record.
	logged, err := geofences.ListEvents(ctx, "user-1", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, logged, 2)
}

func TestGeofenceService_ActionTriggerMustMatch(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()

	createStoreFence(t, svc, types.GeofenceAction{
		Trigger: types.GeofenceExit,
		Type:    types.GeofenceActionAnalytics,
	})

	events, err := svc.ProcessLocation(ctx, "user-1", atFence("device-1", time.Now().UTC()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Actions)
}

func TestGeofenceService_InvalidCoordinatesRejected(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)

	_, err := svc.ProcessLocation(context.Background(), "user-1", &types.LocationUpdate{
		Latitude: 120, Longitude: 0,
	})
	assert.Error(t, err)
}

func TestGeofenceService_LastKnownLocation(t *testing.T) {
	svc, _ := newGeofenceFixture(t, nil)
	ctx := context.Background()

	_, err := svc.LastKnownLocation(ctx, "user-1")
	assert.Error(t, err)

	update := atFence("device-1", time.Now().UTC())
	_, err = svc.ProcessLocation(ctx, "user-1", update)
	require.NoError(t, err)

	loc, err := svc.LastKnownLocation(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, update.Latitude, loc.Latitude)
}
