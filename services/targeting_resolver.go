package services

import (
	"context"
	"fmt"

	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// TargetingResolver turns a declarative targeting spec into the concrete
// device set at dispatch time. The recipient universe is the union of the
// explicit device IDs, user IDs, segment members and location matches,
// intersected with the platform and app-version filters, minus devices that
// opted out of the notification's category.
type TargetingResolver struct {
	devices   store.DeviceStore
	locations store.LocationStore
	segments  SegmentDirectory
	logger    *zap.SugaredLogger
}

func NewTargetingResolver(devices store.DeviceStore, locations store.LocationStore, segments SegmentDirectory) *TargetingResolver {
	return &TargetingResolver{
		devices:   devices,
		locations: locations,
		segments:  segments,
		logger:    logger.GetLogger().Named("targeting-resolver"),
	}
}

// LookupFailure reports a targeting collaborator that could not be
// consulted. The criterion drops out of the audience; callers record the
// failure against the notification so the reduced audience stays visible.
type LookupFailure struct {
	Code    string
	Message string
}

// Resolve returns the devices a notification should be attempted against,
// plus a failure entry for every criterion whose lookup did not complete.
// An empty result is a valid outcome, not an error.
func (r *TargetingResolver) Resolve(ctx context.Context, n *types.PushNotification) ([]*types.DeviceRegistration, []LookupFailure, error) {
	t := n.Targeting
	var failures []LookupFailure

	byID := make(map[string]*types.DeviceRegistration)
	add := func(devices []*types.DeviceRegistration) {
		for _, d := range devices {
			byID[d.DeviceID] = d
		}
	}

	deviceIDs := append([]string(nil), t.DeviceIDs...)
	if n.DeviceID != "" {
		deviceIDs = append(deviceIDs, n.DeviceID)
	}
	if len(deviceIDs) > 0 {
		devices, err := r.devices.ListByIDs(ctx, deviceIDs)
		if err != nil {
			return nil, nil, apperrors.NewDatabaseError(err)
		}
		add(devices)
	}

	userIDs := append([]string(nil), t.UserIDs...)
	if n.UserID != "" {
		userIDs = append(userIDs, n.UserID)
	}

	// Segment memberships resolve to user IDs. A directory failure drops
	// the segment criterion instead of failing the whole dispatch, but it
	// comes back as a recorded failure.
	if len(t.Segments) > 0 && r.segments != nil {
		members, err := r.segments.UsersInSegments(ctx, t.Segments)
		if err != nil {
			failures = append(failures, LookupFailure{
				Code:    "transport_error",
				Message: fmt.Sprintf("segment lookup failed: %v", err),
			})
			r.logger.Warnw("Segment lookup failed, skipping segment criterion",
				"segments", t.Segments, "error", err)
		} else {
			userIDs = append(userIDs, members...)
		}
	}

	// Location criteria match users whose last-known location falls within
	// the radius. Users with no recent location simply never match.
	for _, loc := range t.Locations {
		users, err := r.locations.UsersWithin(ctx, loc.Latitude, loc.Longitude, loc.Radius)
		if err != nil {
			failures = append(failures, LookupFailure{
				Code:    "transport_error",
				Message: fmt.Sprintf("location lookup failed: %v", err),
			})
			r.logger.Warnw("Location lookup failed, skipping location criterion",
				"latitude", loc.Latitude, "longitude", loc.Longitude, "error", err)
			continue
		}
		userIDs = append(userIDs, users...)
	}

	if len(userIDs) > 0 {
		devices, err := r.devices.ListByUsers(ctx, dedupe(userIDs))
		if err != nil {
			return nil, nil, apperrors.NewDatabaseError(err)
		}
		add(devices)
	}

	out := make([]*types.DeviceRegistration, 0, len(byID))
	for _, d := range byID {
		if !matchesFilters(d, t) {
			continue
		}
		if !optedIn(d, n.Type) {
			continue
		}
		out = append(out, d)
	}
	return out, failures, nil
}

// matchesFilters applies the platform and app-version intersection filters.
func matchesFilters(d *types.DeviceRegistration, t types.NotificationTargeting) bool {
	if len(t.Platforms) > 0 {
		found := false
		for _, p := range t.Platforms {
			if d.Platform == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(t.AppVersions) > 0 {
		found := false
		for _, v := range t.AppVersions {
			if d.AppVersion == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// optedIn checks push enablement and the per-category opt-out. System
// notifications are only gated by the global push toggle.
func optedIn(d *types.DeviceRegistration, notifType types.NotificationType) bool {
	category, gated := notifType.PreferenceCategory()
	if !gated {
		return d.PushEnabled
	}
	return d.NotificationsEnabled(category)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
