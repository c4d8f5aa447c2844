package types

import "time"

// AppConfigFeatures toggles client capabilities per platform build.
type AppConfigFeatures struct {
	OfflineMode       bool `json:"offlineMode"`
	PushNotifications bool `json:"pushNotifications"`
	Biometric         bool `json:"biometric"`
	DarkMode          bool `json:"darkMode"`
	VoiceSearch       bool `json:"voiceSearch"`
	VisualSearch      bool `json:"visualSearch"`
	AR                bool `json:"ar"`
	Geolocation       bool `json:"geolocation"`
}

// AppConfigLimits bounds client-side storage and sessions.
type AppConfigLimits struct {
	MaxOfflineStorage int `json:"maxOfflineStorage"` // MB
	MaxImageCacheSize int `json:"maxImageCacheSize"` // MB
	MaxSearchHistory  int `json:"maxSearchHistory"`
	SessionTimeout    int `json:"sessionTimeout"` // minutes
}

// AppConfigAPI tells the client how to talk to the backend.
type AppConfigAPI struct {
	BaseURL       string `json:"baseUrl"`
	Timeout       int    `json:"timeout"` // milliseconds
	RetryAttempts int    `json:"retryAttempts"`
	RetryDelay    int    `json:"retryDelay"` // milliseconds
}

// AppConfigUI carries theming hints the client renders with.
type AppConfigUI struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	AccentColor    string `json:"accentColor"`
	FontFamily     string `json:"fontFamily"`
	IconSet        string `json:"iconSet"`
	Animations     bool   `json:"animations"`
}

// AppConfigAnalytics controls client-side event tracking.
type AppConfigAnalytics struct {
	Enabled    bool     `json:"enabled"`
	TrackingID string   `json:"trackingId"`
	Events     []string `json:"events"`
}

// AppConfigSecurity toggles client hardening measures.
type AppConfigSecurity struct {
	CertificatePinning  bool `json:"certificatePinning"`
	RequestSigning      bool `json:"requestSigning"`
	EncryptLocalStorage bool `json:"encryptLocalStorage"`
}

// MobileAppConfig is the remote configuration a client fetches on startup.
// One record exists per (platform, version); the empty version is the
// platform-wide default served to builds without a pinned override.
type MobileAppConfig struct {
	ID        string             `json:"id"`
	Platform  Platform           `json:"platform"`
	Version   string             `json:"version,omitempty"`
	Features  AppConfigFeatures  `json:"features"`
	Limits    AppConfigLimits    `json:"limits"`
	API       AppConfigAPI       `json:"api"`
	UI        AppConfigUI        `json:"ui"`
	Analytics AppConfigAnalytics `json:"analytics"`
	Security  AppConfigSecurity  `json:"security"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AppConfigUpdate is a partial configuration change; nil sections keep
// their stored values.
type AppConfigUpdate struct {
	Features  *AppConfigFeatures  `json:"features,omitempty"`
	Limits    *AppConfigLimits    `json:"limits,omitempty"`
	API       *AppConfigAPI       `json:"api,omitempty"`
	UI        *AppConfigUI        `json:"ui,omitempty"`
	Analytics *AppConfigAnalytics `json:"analytics,omitempty"`
	Security  *AppConfigSecurity  `json:"security,omitempty"`
}
