package types

import "time"

// Platform identifies the client platform a device runs on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Valid reports whether the platform is one of the known values.
func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

// NotificationCategory names a per-device notification toggle.
type NotificationCategory string

const (
	CategoryOrders      NotificationCategory = "orders"
	CategoryPromotions  NotificationCategory = "promotions"
	CategoryPriceDrops  NotificationCategory = "priceDrops"
	CategoryBackInStock NotificationCategory = "backInStock"
	CategoryMessages    NotificationCategory = "messages"
	CategoryReminders   NotificationCategory = "reminders"
)

// QuietHours is a per-device local time window during which notification
// delivery attempts are deferred. Start and End are "HH:mm" in the device's
// own time zone; the window may wrap midnight (e.g. 22:00-07:00).
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// DevicePreferences holds a device's notification preferences.
type DevicePreferences struct {
	Notifications map[NotificationCategory]bool `json:"notifications"`
	QuietHours    QuietHours                    `json:"quietHours"`
	Categories    []string                      `json:"categories"`
}

// DeviceMetadata carries simple usage counters for a device installation.
type DeviceMetadata struct {
	InstallDate    time.Time `json:"installDate"`
	LastActiveDate time.Time `json:"lastActiveDate"`
	SessionCount   int       `json:"sessionCount"`
	CrashCount     int       `json:"crashCount"`
}

// DeviceRegistration identifies one client installation. At most one
// registration exists per DeviceID; a user may own many devices.
type DeviceRegistration struct {
	DeviceID    string            `json:"deviceId"`
	UserID      string            `json:"userId"`
	Platform    Platform          `json:"platform"`
	DeviceToken string            `json:"deviceToken"`
	AppVersion  string            `json:"appVersion"`
	OSVersion   string            `json:"osVersion"`
	DeviceModel string            `json:"deviceModel"`
	TimeZone    string            `json:"timeZone"`
	Language    string            `json:"language"`
	PushEnabled bool              `json:"pushEnabled"`
	Preferences DevicePreferences `json:"preferences"`
	Metadata    DeviceMetadata    `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// DeviceUpdate is a partial update applied to an existing registration.
// Nil fields are left untouched.
type DeviceUpdate struct {
	DeviceToken *string            `json:"deviceToken,omitempty"`
	AppVersion  *string            `json:"appVersion,omitempty"`
	OSVersion   *string            `json:"osVersion,omitempty"`
	TimeZone    *string            `json:"timeZone,omitempty"`
	Language    *string            `json:"language,omitempty"`
	PushEnabled *bool              `json:"pushEnabled,omitempty"`
	Preferences *DevicePreferences `json:"preferences,omitempty"`
}

// NotificationsEnabled reports whether the device has push enabled and has
// not opted out of the given category. Unknown categories default to enabled.
func (d *DeviceRegistration) NotificationsEnabled(category NotificationCategory) bool {
	if !d.PushEnabled {
		return false
	}
	if d.Preferences.Notifications == nil {
		return true
	}
	enabled, ok := d.Preferences.Notifications[category]
	if !ok {
		return true
	}
	return enabled
}
