package services

import (
	"context"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelemetryFixture(t *testing.T) (*TelemetryService, *memory.DeviceStore) {
	t.Helper()
	devices := memory.NewDeviceStore()
	return NewTelemetryService(memory.NewTelemetryStore(), devices), devices
}

func TestTelemetryService_RecordSessionBumpsDeviceCounter(t *testing.T) {
	svc, devices := newTelemetryFixture(t)
	ctx := context.Background()

	registerDevice(t, devices, "device-1", "user-1")

	sess, err := svc.RecordSession(ctx, &types.AppSession{
		DeviceID: "device-1",
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.False(t, sess.StartTime.IsZero())

	d, err := devices.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Metadata.SessionCount)
}

func TestTelemetryService_RecordSessionUnknownDeviceStillStored(t *testing.T) {
	svc, _ := newTelemetryFixture(t)

	// Telemetry outlives unregistration; only the counter bump is skipped.
	sess, err := svc.RecordSession(context.Background(), &types.AppSession{
		DeviceID: "device-gone",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
}

func TestTelemetryService_CompleteSession(t *testing.T) {
	svc, _ := newTelemetryFixture(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-10 * time.Minute)
	sess, err := svc.RecordSession(ctx, &types.AppSession{
		DeviceID:  "device-1",
		UserID:    "user-1",
		StartTime: start,
	})
	require.NoError(t, err)

	end := start.Add(5 * time.Minute)
	done, err := svc.CompleteSession(ctx, sess.SessionID, end, []types.SessionActivity{
		{Type: "product_view", Timestamp: start.Add(time.Minute)},
	})
	require.NoError(t, err)
	require.NotNil(t, done.EndTime)
	assert.InDelta(t, 300, done.Duration, 0.001)
	assert.Len(t, done.Activities, 1)

	_, err = svc.CompleteSession(ctx, "no-such-session", end, nil)
	assert.Error(t, err)
}

func TestTelemetryService_RecordCrashBumpsCrashCount(t *testing.T) {
	svc, devices := newTelemetryFixture(t)
	ctx := context.Background()

	registerDevice(t, devices, "device-1", "user-1")

	crash, err := svc.RecordCrash(ctx, &types.CrashReport{
		DeviceID:   "device-1",
		AppVersion: "2.1.0",
		StackTrace: "panic: nil map write",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, crash.ID)

	d, err := devices.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Metadata.CrashCount)

	_, err = svc.RecordCrash(ctx, &types.CrashReport{DeviceID: "device-1"})
	assert.Error(t, err)
}

func TestTelemetryService_SessionAnalytics(t *testing.T) {
	svc, _ := newTelemetryFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, dur := range []float64{100, 200, 300} {
		end := now.Add(time.Duration(dur) * time.Second)
		_, err := svc.RecordSession(ctx, &types.AppSession{
			DeviceID:  "device-1",
			UserID:    "user-1",
			StartTime: now.Add(time.Duration(i) * time.Second),
			EndTime:   &end,
			Duration:  dur,
			Activities: []types.SessionActivity{
				{Type: "product_view", Timestamp: now},
				{Type: "search", Timestamp: now},
			},
		})
		require.NoError(t, err)
	}

	analytics, err := svc.SessionAnalytics(ctx, "user-1", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, analytics.TotalSessions)
	assert.Equal(t, 1, analytics.UniqueUsers)
	assert.InDelta(t, 200, analytics.AverageSessionDuration, 0.001)
	require.NotEmpty(t, analytics.TopActivities)
	assert.Equal(t, 3, analytics.TopActivities[0].Count)
}

func TestTelemetryService_PerformanceMetrics(t *testing.T) {
	svc, _ := newTelemetryFixture(t)
	ctx := context.Background()

	for _, startTime := range []float64{1.0, 3.0} {
		_, err := svc.RecordPerformance(ctx, &types.PerformanceReport{
			DeviceID:  "device-1",
			SessionID: "session-1",
			Metrics: types.SessionPerformance{
				AppStartTime:    startTime,
				MemoryUsage:     256,
				ScreenLoadTimes: map[string]float64{"home": 0.5, "catalog": 1.5},
			},
		})
		require.NoError(t, err)
	}

	metrics, err := svc.PerformanceMetrics(ctx, "device-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, metrics.AverageAppStartTime, 0.001)
	assert.InDelta(t, 256, metrics.AverageMemoryUsage, 0.001)
	assert.InDelta(t, 1.0, metrics.AverageScreenLoadTime, 0.001)

	_, err = svc.RecordPerformance(ctx, &types.PerformanceReport{})
	assert.Error(t, err)
}
