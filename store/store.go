// Package store defines the persistence interfaces consumed by the service
// layer. Implementations live in store/memory (tests, single-node dev),
// store/postgres (durable state) and store/redis (last-known locations).
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marketloop/mobile-backend/types"
)

// DeviceStore handles device registration data operations.
type DeviceStore interface {
	// Upsert creates a registration or replaces the one with the same
	// DeviceID. Re-registration preserves the original install date.
	Upsert(ctx context.Context, reg *types.DeviceRegistration) error
	Get(ctx context.Context, deviceID string) (*types.DeviceRegistration, error)
	ListByUser(ctx context.Context, userID string) ([]*types.DeviceRegistration, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]*types.DeviceRegistration, error)
	ListByIDs(ctx context.Context, deviceIDs []string) ([]*types.DeviceRegistration, error)
	Delete(ctx context.Context, deviceID string) error
	// TouchLastActive refreshes the last-active timestamp without bumping
	// UpdatedAt semantics used by preference changes.
	TouchLastActive(ctx context.Context, deviceID string, at time.Time) error
	IncrementSessionCount(ctx context.Context, deviceID string) error
	IncrementCrashCount(ctx context.Context, deviceID string) error
}

// OfflineStore owns versioned offline data items. Version numbers are the
// sole concurrency-control token: UpdateCAS commits only when the expected
// version still matches, and no two successful writes share (id, version).
type OfflineStore interface {
	// Create stores a new item at version 1. ErrConflict if the ID exists.
	Create(ctx context.Context, item *types.OfflineDataItem) error
	Get(ctx context.Context, id string) (*types.OfflineDataItem, error)
	List(ctx context.Context, userID string, dataType types.OfflineDataType) ([]*types.OfflineDataItem, error)
	// UpdateCAS commits data against expectedVersion. Exactly one of two
	// racing calls with the same expectedVersion succeeds; the loser gets
	// ErrConflict and should refetch server state.
	UpdateCAS(ctx context.Context, id string, data json.RawMessage, expectedVersion int) (*types.OfflineDataItem, error)
	// Delete removes an item. Without force it fails with ErrDependency
	// while other items list id in their dependencies; force removes the
	// dependency edge from dependents but never deletes them.
	Delete(ctx context.Context, id string, force bool) error
	// Dependents returns the IDs of items listing id as a dependency.
	Dependents(ctx context.Context, id string) ([]string, error)
	// PurgeExpired removes items whose expiry passed, returning the count.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// SyncSessionStore tracks reconciliation runs.
type SyncSessionStore interface {
	Create(ctx context.Context, session *types.SyncSession) error
	Get(ctx context.Context, id string) (*types.SyncSession, error)
	Update(ctx context.Context, session *types.SyncSession) error
	ListByUser(ctx context.Context, userID string) ([]*types.SyncSession, error)
}

// NotificationStore persists notifications, their delivery ledger and
// analytics counters.
type NotificationStore interface {
	Create(ctx context.Context, n *types.PushNotification) error
	Get(ctx context.Context, id string) (*types.PushNotification, error)
	Update(ctx context.Context, n *types.PushNotification) error
	// TransitionStatus atomically moves a notification from one status to
	// another. Returns false when the current status no longer matches,
	// which makes scheduler claims idempotent across replicas and restarts.
	TransitionStatus(ctx context.Context, id string, from, to types.NotificationStatus) (bool, error)
	Delete(ctx context.Context, id string) error
	// ListDue returns scheduled notifications whose send time has passed.
	ListDue(ctx context.Context, now time.Time) ([]*types.PushNotification, error)
	ListHistory(ctx context.Context, userID, deviceID string, limit int) ([]*types.PushNotification, error)
	// RecordDelivery appends the terminal per-device outcome for one
	// (notification, device) pair. Idempotent on replays.
	RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error
	ListDeliveries(ctx context.Context, notificationID string) ([]*types.DeliveryRecord, error)
	// IncrementCounter bumps one analytics counter (sent, delivered,
	// opened, clicked, dismissed). Counters only ever increase.
	IncrementCounter(ctx context.Context, id string, counter string, delta int) error
	// RecordErrorCode folds a categorized delivery error into the
	// notification's error histogram.
	RecordErrorCode(ctx context.Context, id string, code string, message string) error
}

// Analytics counter names accepted by IncrementCounter.
const (
	CounterSent      = "sent"
	CounterDelivered = "delivered"
	CounterOpened    = "opened"
	CounterClicked   = "clicked"
	CounterDismissed = "dismissed"
)

// GeofenceStore owns geofence definitions, per-pair presence state and the
// append-only event log.
type GeofenceStore interface {
	Create(ctx context.Context, g *types.Geofence) error
	Get(ctx context.Context, id string) (*types.Geofence, error)
	List(ctx context.Context) ([]*types.Geofence, error)
	GetPresence(ctx context.Context, userID, geofenceID string) (*types.GeofencePresence, error)
	SetPresence(ctx context.Context, p *types.GeofencePresence) error
	// AppendEvent records an event. ErrConflict when the event ID already
	// exists.
	AppendEvent(ctx context.Context, e *types.GeofenceEvent) error
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*types.GeofenceEvent, error)
}

// AppConfigStore owns the per-platform mobile app configuration records.
type AppConfigStore interface {
	// Create stores a new config. ErrConflict if the ID or the
	// (platform, version) pair already exists.
	Create(ctx context.Context, cfg *types.MobileAppConfig) error
	Get(ctx context.Context, id string) (*types.MobileAppConfig, error)
	// GetByPlatform returns the config pinned to (platform, version); the
	// empty version addresses the platform-wide default row.
	GetByPlatform(ctx context.Context, platform types.Platform, version string) (*types.MobileAppConfig, error)
	Update(ctx context.Context, cfg *types.MobileAppConfig) error
}

// TelemetryStore is the append-only sink for sessions, crashes and
// performance reports.
type TelemetryStore interface {
	CreateSession(ctx context.Context, s *types.AppSession) error
	GetSession(ctx context.Context, sessionID string) (*types.AppSession, error)
	UpdateSession(ctx context.Context, s *types.AppSession) error
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]*types.AppSession, error)
	CreateCrashReport(ctx context.Context, c *types.CrashReport) error
	ListCrashReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.CrashReport, error)
	CreatePerformanceReport(ctx context.Context, p *types.PerformanceReport) error
	ListPerformanceReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.PerformanceReport, error)
}

// LocationStore is the last-known-location collaborator consumed by the
// targeting resolver. Backed by Redis in production.
type LocationStore interface {
	SetLastKnown(ctx context.Context, userID string, loc types.LocationUpdate) error
	GetLastKnown(ctx context.Context, userID string) (*types.LocationUpdate, error)
	// UsersWithin returns the IDs of users whose last-known location lies
	// within radiusMeters of the given point.
	UsersWithin(ctx context.Context, lat, lng, radiusMeters float64) ([]string, error)
}
