package types

import "time"

// NetworkType is the connectivity class reported by a session.
type NetworkType string

const (
	NetworkWifi     NetworkType = "wifi"
	NetworkCellular NetworkType = "cellular"
	NetworkNone     NetworkType = "none"
)

// SessionActivity is one tracked action inside an app session.
type SessionActivity struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// SessionNetwork describes the network conditions during a session.
type SessionNetwork struct {
	Type     NetworkType `json:"type"`
	Strength int         `json:"strength"`
	Provider string      `json:"provider,omitempty"`
}

// SessionPerformance carries client-measured performance numbers.
type SessionPerformance struct {
	AppStartTime     float64            `json:"appStartTime"`
	ScreenLoadTimes  map[string]float64 `json:"screenLoadTimes,omitempty"`
	APIResponseTimes map[string]float64 `json:"apiResponseTimes,omitempty"`
	MemoryUsage      float64            `json:"memoryUsage"`
	BatteryLevel     float64            `json:"batteryLevel"`
}

// AppSession is one app usage session. Telemetry records are append-only.
type AppSession struct {
	SessionID   string             `json:"sessionId"`
	UserID      string             `json:"userId,omitempty"`
	DeviceID    string             `json:"deviceId"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     *time.Time         `json:"endTime,omitempty"`
	Duration    float64            `json:"duration,omitempty"` // seconds
	Activities  []SessionActivity  `json:"activities"`
	Network     SessionNetwork     `json:"network"`
	Performance SessionPerformance `json:"performance"`
}

// CrashReport is a client-reported crash, append-only.
type CrashReport struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"deviceId"`
	UserID     string         `json:"userId,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	AppVersion string         `json:"appVersion"`
	OSVersion  string         `json:"osVersion"`
	StackTrace string         `json:"stackTrace"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Resolved   bool           `json:"resolved"`
}

// PerformanceReport is a client-pushed metrics sample tied to a session.
type PerformanceReport struct {
	ID        string             `json:"id"`
	DeviceID  string             `json:"deviceId"`
	SessionID string             `json:"sessionId"`
	Metrics   SessionPerformance `json:"metrics"`
	CreatedAt time.Time          `json:"createdAt"`
}

// SessionAnalytics is the read-side rollup over sessions in a time range.
type SessionAnalytics struct {
	TotalSessions          int            `json:"totalSessions"`
	UniqueUsers            int            `json:"uniqueUsers"`
	AverageSessionDuration float64        `json:"averageSessionDuration"`
	TopActivities          []ActivityStat `json:"topActivities"`
	CrashRate              float64        `json:"crashRate"`
}

// ActivityStat is one entry in the top-activities list.
type ActivityStat struct {
	Activity string `json:"activity"`
	Count    int    `json:"count"`
}

// PerformanceMetrics is the read-side rollup over performance reports.
type PerformanceMetrics struct {
	AverageAppStartTime    float64        `json:"averageAppStartTime"`
	AverageMemoryUsage     float64        `json:"averageMemoryUsage"`
	AverageScreenLoadTime  float64        `json:"averageScreenLoadTime"`
	AverageAPIResponseTime float64        `json:"averageApiResponseTime"`
	ByPlatform             map[string]int `json:"byPlatform,omitempty"`
	ByVersion              map[string]int `json:"byVersion,omitempty"`
}
