package types

import (
	"time"
)

// NotificationType classifies a push notification's intent. It maps onto the
// device preference categories for opt-out checks.
type NotificationType string

const (
	NotificationTypeOrder     NotificationType = "order"
	NotificationTypePromotion NotificationType = "promotion"
	NotificationTypePriceDrop NotificationType = "price_drop"
	NotificationTypeStock     NotificationType = "stock"
	NotificationTypeMessage   NotificationType = "message"
	NotificationTypeReminder  NotificationType = "reminder"
	NotificationTypeSystem    NotificationType = "system"
)

// Valid reports whether the notification type is a known value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeOrder, NotificationTypePromotion, NotificationTypePriceDrop,
		NotificationTypeStock, NotificationTypeMessage, NotificationTypeReminder,
		NotificationTypeSystem:
		return true
	}
	return false
}

// PreferenceCategory maps a notification type to the device preference
// toggle that gates it. System notifications are never gated.
func (t NotificationType) PreferenceCategory() (NotificationCategory, bool) {
	switch t {
	case NotificationTypeOrder:
		return CategoryOrders, true
	case NotificationTypePromotion:
		return CategoryPromotions, true
	case NotificationTypePriceDrop:
		return CategoryPriceDrops, true
	case NotificationTypeStock:
		return CategoryBackInStock, true
	case NotificationTypeMessage:
		return CategoryMessages, true
	case NotificationTypeReminder:
		return CategoryReminders, true
	}
	return "", false
}

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationStatus is the notification lifecycle state machine:
// draft -> scheduled -> sending -> {sent, failed} when scheduled, or
// draft -> sending -> {sent, failed} for immediate sends.
type NotificationStatus string

const (
	StatusDraft     NotificationStatus = "draft"
	StatusScheduled NotificationStatus = "scheduled"
	StatusSending   NotificationStatus = "sending"
	StatusSent      NotificationStatus = "sent"
	StatusFailed    NotificationStatus = "failed"
)

// ActionButton is an interactive button attached to a notification.
type ActionButton struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Action string `json:"action"`
	Icon   string `json:"icon,omitempty"`
}

// NotificationSchedule holds the delayed-send instant for a scheduled
// notification.
type NotificationSchedule struct {
	SendAt   time.Time `json:"sendAt"`
	Timezone string    `json:"timezone,omitempty"`
}

// TargetLocation is a location+radius constraint in a targeting spec.
type TargetLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"` // meters
}

// NotificationTargeting is the fuzzy, declarative description of intended
// recipients, resolved to concrete devices at send time: union across
// explicit criteria, intersected with platform/version filters.
type NotificationTargeting struct {
	UserIDs     []string         `json:"userIds,omitempty"`
	DeviceIDs   []string         `json:"deviceIds,omitempty"`
	Segments    []string         `json:"segments,omitempty"`
	Platforms   []Platform       `json:"platforms,omitempty"`
	AppVersions []string         `json:"appVersions,omitempty"`
	Locations   []TargetLocation `json:"locations,omitempty"`
}

// Empty reports whether the targeting spec names no recipient universe.
func (t NotificationTargeting) Empty() bool {
	return len(t.UserIDs) == 0 && len(t.DeviceIDs) == 0 &&
		len(t.Segments) == 0 && len(t.Locations) == 0
}

// NotificationError is one entry in the per-notification error histogram.
type NotificationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// NotificationAnalytics is the per-notification delivery rollup. Counters
// only ever increase.
type NotificationAnalytics struct {
	SentCount      int                 `json:"sentCount"`
	DeliveredCount int                 `json:"deliveredCount"`
	OpenedCount    int                 `json:"openedCount"`
	ClickedCount   int                 `json:"clickedCount"`
	DismissedCount int                 `json:"dismissedCount"`
	Errors         []NotificationError `json:"errors"`
}

// PushNotification is a message moving through the dispatch pipeline.
type PushNotification struct {
	ID            string                `json:"id"`
	UserID        string                `json:"userId,omitempty"`
	DeviceID      string                `json:"deviceId,omitempty"`
	Type          NotificationType      `json:"type"`
	Title         string                `json:"title"`
	Body          string                `json:"body"`
	Data          map[string]any        `json:"data,omitempty"`
	ImageURL      string                `json:"imageUrl,omitempty"`
	ActionButtons []ActionButton        `json:"actionButtons,omitempty"`
	Priority      NotificationPriority  `json:"priority"`
	Scheduled     *NotificationSchedule `json:"scheduled,omitempty"`
	Targeting     NotificationTargeting `json:"targeting"`
	Analytics     NotificationAnalytics `json:"analytics"`
	Status        NotificationStatus    `json:"status"`
	CreatedAt     time.Time             `json:"createdAt"`
	SentAt        *time.Time            `json:"sentAt,omitempty"`
}

// DeliveryOutcome is the terminal per-device result of a dispatch attempt.
type DeliveryOutcome string

const (
	DeliveryDelivered DeliveryOutcome = "delivered"
	DeliveryDismissed DeliveryOutcome = "dismissed"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// DeliveryRecord is the idempotency ledger entry for one
// (notification, device) pair. A restart mid-dispatch consults the ledger to
// avoid duplicate attempts against devices already delivered.
type DeliveryRecord struct {
	NotificationID string          `json:"notificationId"`
	DeviceID       string          `json:"deviceId"`
	Outcome        DeliveryOutcome `json:"outcome"`
	ErrorCode      string          `json:"errorCode,omitempty"`
	Attempts       int             `json:"attempts"`
	CompletedAt    time.Time       `json:"completedAt"`
}

// SendNotificationRequest is the request body for creating and sending a
// notification.
type SendNotificationRequest struct {
	UserID        string                `json:"userId,omitempty"`
	DeviceID      string                `json:"deviceId,omitempty"`
	Type          NotificationType      `json:"type" binding:"required"`
	Title         string                `json:"title" binding:"required"`
	Body          string                `json:"body" binding:"required"`
	Data          map[string]any        `json:"data,omitempty"`
	ImageURL      string                `json:"imageUrl,omitempty"`
	ActionButtons []ActionButton        `json:"actionButtons,omitempty"`
	Priority      NotificationPriority  `json:"priority,omitempty"`
	Scheduled     *NotificationSchedule `json:"scheduled,omitempty"`
	Targeting     NotificationTargeting `json:"targeting"`
}

// BulkNotificationRequest wraps multiple independent sends.
type BulkNotificationRequest struct {
	Notifications []SendNotificationRequest `json:"notifications" binding:"required"`
}

// AnalyticsSummary is the cross-notification analytics rollup.
type AnalyticsSummary struct {
	TotalSent    int                   `json:"totalSent"`
	Delivered    int                   `json:"delivered"`
	Opened       int                   `json:"opened"`
	Clicked      int                   `json:"clicked"`
	Dismissed    int                   `json:"dismissed"`
	OpenRate     float64               `json:"openRate"`
	ClickRate    float64               `json:"clickRate"`
	DeliveryRate float64               `json:"deliveryRate"`
	ByPlatform   map[string]int        `json:"byPlatform"`
	ByType       map[string]int        `json:"byType"`
	ByTimeOfDay  []AnalyticsHourBucket `json:"byTimeOfDay"`
}

// AnalyticsHourBucket is one hour-of-day slot in the summary.
type AnalyticsHourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}
