package types

import "time"

// GeofenceType classifies what a geofence surrounds.
type GeofenceType string

const (
	GeofenceTypeStore      GeofenceType = "store"
	GeofenceTypeWarehouse  GeofenceType = "warehouse"
	GeofenceTypeEvent      GeofenceType = "event"
	GeofenceTypeCompetitor GeofenceType = "competitor"
)

// Valid reports whether the geofence type is a known value.
func (t GeofenceType) Valid() bool {
	switch t {
	case GeofenceTypeStore, GeofenceTypeWarehouse, GeofenceTypeEvent, GeofenceTypeCompetitor:
		return true
	}
	return false
}

// GeofenceEventType is the kind of transition a location update produced.
type GeofenceEventType string

const (
	GeofenceEnter GeofenceEventType = "enter"
	GeofenceExit  GeofenceEventType = "exit"
	GeofenceDwell GeofenceEventType = "dwell"
)

// GeofenceActionType is what a matched geofence triggers.
type GeofenceActionType string

const (
	GeofenceActionNotification GeofenceActionType = "notification"
	GeofenceActionPromotion    GeofenceActionType = "promotion"
	GeofenceActionAnalytics    GeofenceActionType = "analytics"
	GeofenceActionReminder     GeofenceActionType = "reminder"
)

// GeofenceAction is a configured reaction bound to one transition type.
type GeofenceAction struct {
	Trigger GeofenceEventType  `json:"trigger"`
	Type    GeofenceActionType `json:"type"`
	Data    map[string]any     `json:"data,omitempty"`
}

// Geofence is a registered circular region with configured actions.
type Geofence struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Radius    float64          `json:"radius"` // meters
	Type      GeofenceType     `json:"type"`
	Actions   []GeofenceAction `json:"actions,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// TriggeredAction records one action run (or skipped) for a geofence event.
type TriggeredAction struct {
	Type     GeofenceActionType `json:"type"`
	Executed bool               `json:"executed"`
	Data     map[string]any     `json:"data,omitempty"`
}

// GeofenceEvent is produced by the evaluator and never mutated afterwards.
type GeofenceEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	DeviceID  string            `json:"deviceId"`
	Type      GeofenceEventType `json:"type"`
	Geofence  Geofence          `json:"geofence"`
	Timestamp time.Time         `json:"timestamp"`
	Accuracy  float64           `json:"accuracy"`
	Actions   []TriggeredAction `json:"actions"`
}

// GeofencePresence is the evaluator's per (user, geofence) memory: last
// known inside/outside state and the continuous-dwell start time. This is
// the only state the evaluator keeps beyond the incoming update.
type GeofencePresence struct {
	UserID     string    `json:"userId"`
	GeofenceID string    `json:"geofenceId"`
	Inside     bool      `json:"inside"`
	Since      time.Time `json:"since"`
	DwellFired bool      `json:"dwellFired"`
}

// LocationUpdate is a device-reported position.
type LocationUpdate struct {
	Latitude  float64   `json:"latitude" binding:"required"`
	Longitude float64   `json:"longitude" binding:"required"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"deviceId,omitempty"`
}

// CreateGeofenceRequest is the request body for registering a geofence.
type CreateGeofenceRequest struct {
	Name      string           `json:"name" binding:"required"`
	Latitude  float64          `json:"latitude" binding:"required"`
	Longitude float64          `json:"longitude" binding:"required"`
	Radius    float64          `json:"radius" binding:"required"`
	Type      GeofenceType     `json:"type" binding:"required"`
	Actions   []GeofenceAction `json:"actions,omitempty"`
}
