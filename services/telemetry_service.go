package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// TelemetryService is the append-only sink for app sessions, crash reports
// and performance samples, plus the read-side rollups over them.
type TelemetryService struct {
	telemetry store.TelemetryStore
	devices   store.DeviceStore
	logger    *zap.SugaredLogger
}

func NewTelemetryService(telemetry store.TelemetryStore, devices store.DeviceStore) *TelemetryService {
	return &TelemetryService{
		telemetry: telemetry,
		devices:   devices,
		logger:    logger.GetLogger().Named("telemetry-service"),
	}
}

// RecordSession stores a reported app session. An open session (no end
// time) may be completed later via CompleteSession. Recording a session
// bumps the device's session counter.
func (s *TelemetryService) RecordSession(ctx context.Context, sess *types.AppSession) (*types.AppSession, error) {
	if sess.DeviceID == "" {
		return nil, apperrors.ValidationFailed("Invalid session", "deviceId is required")
	}
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.StartTime.IsZero() {
		sess.StartTime = time.Now().UTC()
	}
	if sess.EndTime != nil && sess.Duration == 0 {
		sess.Duration = sess.EndTime.Sub(sess.StartTime).Seconds()
	}

	if err := s.telemetry.CreateSession(ctx, sess); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if err := s.devices.IncrementSessionCount(ctx, sess.DeviceID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warnw("Failed to bump device session count",
				"deviceID", sess.DeviceID, "error", err)
		}
	}
	return sess, nil
}

// TrackActivity appends one activity to an open session.
func (s *TelemetryService) TrackActivity(ctx context.Context, sessionID string, activity types.SessionActivity) (*types.AppSession, error) {
	if activity.Type == "" {
		return nil, apperrors.ValidationFailed("Invalid activity", "type is required")
	}
	sess, err := s.telemetry.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Session", sessionID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}
	sess.Activities = append(sess.Activities, activity)
	if err := s.telemetry.UpdateSession(ctx, sess); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return sess, nil
}

// CompleteSession closes an open session and computes its duration.
func (s *TelemetryService) CompleteSession(ctx context.Context, sessionID string, endTime time.Time, activities []types.SessionActivity) (*types.AppSession, error) {
	sess, err := s.telemetry.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Session", sessionID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	sess.EndTime = &endTime
	sess.Duration = endTime.Sub(sess.StartTime).Seconds()
	if len(activities) > 0 {
		sess.Activities = append(sess.Activities, activities...)
	}
	if err := s.telemetry.UpdateSession(ctx, sess); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return sess, nil
}

// RecordCrash stores a crash report and bumps the device's crash counter.
func (s *TelemetryService) RecordCrash(ctx context.Context, crash *types.CrashReport) (*types.CrashReport, error) {
	if crash.DeviceID == "" {
		return nil, apperrors.ValidationFailed("Invalid crash report", "deviceId is required")
	}
	if crash.StackTrace == "" {
		return nil, apperrors.ValidationFailed("Invalid crash report", "stackTrace is required")
	}
	if crash.ID == "" {
		crash.ID = uuid.New().String()
	}
	if crash.Timestamp.IsZero() {
		crash.Timestamp = time.Now().UTC()
	}

	if err := s.telemetry.CreateCrashReport(ctx, crash); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if err := s.devices.IncrementCrashCount(ctx, crash.DeviceID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warnw("Failed to bump device crash count",
				"deviceID", crash.DeviceID, "error", err)
		}
	}
	s.logger.Warnw("Crash report recorded",
		"crashID", crash.ID,
		"deviceID", crash.DeviceID,
		"appVersion", crash.AppVersion)
	return crash, nil
}

// RecordPerformance stores a client-pushed performance sample.
func (s *TelemetryService) RecordPerformance(ctx context.Context, report *types.PerformanceReport) (*types.PerformanceReport, error) {
	if report.DeviceID == "" {
		return nil, apperrors.ValidationFailed("Invalid performance report", "deviceId is required")
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if err := s.telemetry.CreatePerformanceReport(ctx, report); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return report, nil
}

// SessionAnalytics aggregates a user's sessions within a time range.
func (s *TelemetryService) SessionAnalytics(ctx context.Context, userID string, from, to time.Time) (*types.SessionAnalytics, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-30 * 24 * time.Hour)
	}
	sessions, err := s.telemetry.ListSessions(ctx, userID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	out := &types.SessionAnalytics{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return out, nil
	}

	users := make(map[string]struct{})
	activityCounts := make(map[string]int)
	var totalDuration float64
	crashes := 0
	for _, sess := range sessions {
		if sess.UserID != "" {
			users[sess.UserID] = struct{}{}
		}
		totalDuration += sess.Duration
		for _, act := range sess.Activities {
			activityCounts[act.Type]++
			if act.Type == "crash" {
				crashes++
			}
		}
	}
	out.UniqueUsers = len(users)
	out.AverageSessionDuration = totalDuration / float64(len(sessions))
	out.CrashRate = float64(crashes) / float64(len(sessions))

	for activity, count := range activityCounts {
		out.TopActivities = append(out.TopActivities, types.ActivityStat{
			Activity: activity,
			Count:    count,
		})
	}
	sort.Slice(out.TopActivities, func(i, j int) bool {
		if out.TopActivities[i].Count != out.TopActivities[j].Count {
			return out.TopActivities[i].Count > out.TopActivities[j].Count
		}
		return out.TopActivities[i].Activity < out.TopActivities[j].Activity
	})
	if len(out.TopActivities) > 10 {
		out.TopActivities = out.TopActivities[:10]
	}
	return out, nil
}

// PerformanceMetrics aggregates a device's performance samples within a
// time range.
func (s *TelemetryService) PerformanceMetrics(ctx context.Context, deviceID string, from, to time.Time) (*types.PerformanceMetrics, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-7 * 24 * time.Hour)
	}
	reports, err := s.telemetry.ListPerformanceReports(ctx, deviceID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	out := &types.PerformanceMetrics{}
	if len(reports) == 0 {
		return out, nil
	}

	var startSum, memSum, screenSum, apiSum float64
	var screenCount, apiCount int
	for _, r := range reports {
		startSum += r.Metrics.AppStartTime
		memSum += r.Metrics.MemoryUsage
		for _, v := range r.Metrics.ScreenLoadTimes {
			screenSum += v
			screenCount++
		}
		for _, v := range r.Metrics.APIResponseTimes {
			apiSum += v
			apiCount++
		}
	}
	n := float64(len(reports))
	out.AverageAppStartTime = startSum / n
	out.AverageMemoryUsage = memSum / n
	if screenCount > 0 {
		out.AverageScreenLoadTime = screenSum / float64(screenCount)
	}
	if apiCount > 0 {
		out.AverageAPIResponseTime = apiSum / float64(apiCount)
	}
	return out, nil
}

// CrashReports lists a device's crashes within a time range.
func (s *TelemetryService) CrashReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.CrashReport, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-30 * 24 * time.Hour)
	}
	reports, err := s.telemetry.ListCrashReports(ctx, deviceID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return reports, nil
}
