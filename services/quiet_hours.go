package services

import (
	"time"

	"github.com/marketloop/mobile-backend/types"
)

// quietHoursDeferral reports whether the instant falls inside the device's
// quiet-hours window, evaluated in the device's own time zone, and if so
// when the window ends. The window may wrap midnight (22:00-07:00 covers
// 23:00 as well as 06:00).
func quietHoursDeferral(d *types.DeviceRegistration, now time.Time) (time.Time, bool) {
	qh := d.Preferences.QuietHours
	if !qh.Enabled {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation(d.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	start, err := time.Parse("15:04", qh.Start)
	if err != nil {
		return time.Time{}, false
	}
	end, err := time.Parse("15:04", qh.End)
	if err != nil {
		return time.Time{}, false
	}

	local := now.In(loc)
	startToday := time.Date(local.Year(), local.Month(), local.Day(),
		start.Hour(), start.Minute(), 0, 0, loc)
	endToday := time.Date(local.Year(), local.Month(), local.Day(),
		end.Hour(), end.Minute(), 0, 0, loc)

	if startToday.Before(endToday) || startToday.Equal(endToday) {
		// Same-day window, e.g. 13:00-15:00.
		if !local.Before(startToday) && local.Before(endToday) {
			return endToday.UTC(), true
		}
		return time.Time{}, false
	}

	// Wrapping window, e.g. 22:00-07:00.
	if !local.Before(startToday) {
		// After tonight's start; the window ends tomorrow.
		return endToday.Add(24 * time.Hour).UTC(), true
	}
	if local.Before(endToday) {
		// Before this morning's end.
		return endToday.UTC(), true
	}
	return time.Time{}, false
}
