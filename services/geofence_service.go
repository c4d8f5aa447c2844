package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/mobile-backend/config"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/pkg/geo"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// GeofenceService evaluates device location updates against registered
// geofences, producing enter, exit and dwell events and running the actions
// configured on each fence. The only state kept between updates is the per
// (user, geofence) presence record.
type GeofenceService struct {
	geofences  store.GeofenceStore
	locations  store.LocationStore
	dispatcher *DispatchService
	cfg        config.GeofenceConfig
	logger     *zap.SugaredLogger
}

func NewGeofenceService(
	geofences store.GeofenceStore,
	locations store.LocationStore,
	dispatcher *DispatchService,
	cfg config.GeofenceConfig,
) *GeofenceService {
	return &GeofenceService{
		geofences:  geofences,
		locations:  locations,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.GetLogger().Named("geofence-service"),
	}
}

// CreateGeofence registers a new circular region.
func (s *GeofenceService) CreateGeofence(ctx context.Context, req *types.CreateGeofenceRequest) (*types.Geofence, error) {
	if !req.Type.Valid() {
		return nil, apperrors.ValidationFailed("Invalid geofence type", string(req.Type))
	}
	if req.Radius <= 0 {
		return nil, apperrors.ValidationFailed("Invalid geofence radius", "radius must be positive")
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, apperrors.ValidationFailed("Invalid geofence coordinates",
			fmt.Sprintf("(%f, %f) is out of range", req.Latitude, req.Longitude))
	}

	g := &types.Geofence{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Radius:    req.Radius,
		Type:      req.Type,
		Actions:   req.Actions,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.geofences.Create(ctx, g); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	s.logger.Infow("Geofence registered",
		"geofenceID", g.ID, "name", g.Name, "type", g.Type, "radius", g.Radius)
	return g, nil
}

// ListGeofences returns all registered geofences.
func (s *GeofenceService) ListGeofences(ctx context.Context) ([]*types.Geofence, error) {
	fences, err := s.geofences.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return fences, nil
}

// ProcessLocation evaluates one location update, stores it as the user's
// last-known position, and returns the events it produced. A continuous
// stay inside a fence yields exactly one dwell event once the threshold
// passes; leaving and re-entering rearms it.
func (s *GeofenceService) ProcessLocation(ctx context.Context, userID string, update *types.LocationUpdate) ([]*types.GeofenceEvent, error) {
	if update.Latitude < -90 || update.Latitude > 90 || update.Longitude < -180 || update.Longitude > 180 {
		return nil, apperrors.ValidationFailed("Invalid coordinates",
			fmt.Sprintf("(%f, %f) is out of range", update.Latitude, update.Longitude))
	}
	at := update.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
		update.Timestamp = at
	}

	if err := s.locations.SetLastKnown(ctx, userID, *update); err != nil {
		s.logger.Warnw("Failed to store last-known location", "userID", userID, "error", err)
	}

	fences, err := s.geofences.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	var events []*types.GeofenceEvent
	for _, fence := range fences {
		event, err := s.evaluateFence(ctx, userID, update, fence, at)
		if err != nil {
			return nil, err
		}
		if event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

// evaluateFence applies the presence state machine for one (user, fence)
// pair and emits at most one event per update.
func (s *GeofenceService) evaluateFence(ctx context.Context, userID string, update *types.LocationUpdate, fence *types.Geofence, at time.Time) (*types.GeofenceEvent, error) {
	inside := geo.Within(update.Latitude, update.Longitude, fence.Latitude, fence.Longitude, fence.Radius)

	presence, err := s.geofences.GetPresence(ctx, userID, fence.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewDatabaseError(err)
		}
		presence = &types.GeofencePresence{UserID: userID, GeofenceID: fence.ID}
	}

	var eventType types.GeofenceEventType
	switch {
	case inside && !presence.Inside:
		eventType = types.GeofenceEnter
		presence.Inside = true
		presence.Since = at
		presence.DwellFired = false
	case !inside && presence.Inside:
		eventType = types.GeofenceExit
		presence.Inside = false
		presence.Since = at
		presence.DwellFired = false
	case inside && presence.Inside:
		if !presence.DwellFired && at.Sub(presence.Since) >= s.cfg.DwellThreshold() {
			eventType = types.GeofenceDwell
			presence.DwellFired = true
		}
	}

	if err := s.geofences.SetPresence(ctx, presence); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if eventType == "" {
		return nil, nil
	}

	event := &types.GeofenceEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		DeviceID:  update.DeviceID,
		Type:      eventType,
		Geofence:  *fence,
		Timestamp: at,
		Accuracy:  update.Accuracy,
	}
	event.Actions = s.runActions(ctx, event, fence)

	// Replay protection lives in the presence transitions above: a repeated
	// enter or exit produces no event, so by the time one exists here it is
	// new and its actions have run exactly once.
	if err := s.geofences.AppendEvent(ctx, event); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.logger.Infow("Geofence event",
		"eventID", event.ID,
		"userID", userID,
		"geofence", fence.Name,
		"type", eventType)
	return event, nil
}

// runActions executes the actions whose trigger matches the event type.
// Notification-style actions enqueue a push through the dispatcher;
// analytics actions only mark the event record.
func (s *GeofenceService) runActions(ctx context.Context, event *types.GeofenceEvent, fence *types.Geofence) []types.TriggeredAction {
	triggered := []types.TriggeredAction{}
	for _, action := range fence.Actions {
		if action.Trigger != event.Type {
			continue
		}
		result := types.TriggeredAction{Type: action.Type, Data: action.Data}
		switch action.Type {
		case types.GeofenceActionNotification, types.GeofenceActionPromotion, types.GeofenceActionReminder:
			if err := s.sendActionNotification(ctx, event, fence, action); err != nil {
				s.logger.Warnw("Geofence action notification failed",
					"eventID", event.ID, "actionType", action.Type, "error", err)
			} else {
				result.Executed = true
			}
		case types.GeofenceActionAnalytics:
			// The appended event itself is the analytics record.
			result.Executed = true
		}
		triggered = append(triggered, result)
	}
	return triggered
}

func (s *GeofenceService) sendActionNotification(ctx context.Context, event *types.GeofenceEvent, fence *types.Geofence, action types.GeofenceAction) error {
	if s.dispatcher == nil {
		return fmt.Errorf("no dispatcher configured")
	}

	notifType := types.NotificationTypeSystem
	switch action.Type {
	case types.GeofenceActionPromotion:
		notifType = types.NotificationTypePromotion
	case types.GeofenceActionReminder:
		notifType = types.NotificationTypeReminder
	}

	title, _ := action.Data["title"].(string)
	if title == "" {
		title = fence.Name
	}
	body, _ := action.Data["body"].(string)
	if body == "" {
		body = fmt.Sprintf("You are near %s", fence.Name)
	}

	_, err := s.dispatcher.Send(ctx, &types.SendNotificationRequest{
		UserID: event.UserID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data: map[string]any{
			"geofenceId": fence.ID,
			"eventId":    event.ID,
			"eventType":  string(event.Type),
		},
		Priority: types.PriorityNormal,
	})
	return err
}

// Events returns a user's geofence event history within a time range.
func (s *GeofenceService) Events(ctx context.Context, userID string, from, to time.Time) ([]*types.GeofenceEvent, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	events, err := s.geofences.ListEvents(ctx, userID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return events, nil
}

// LastKnownLocation returns a user's most recent stored position.
func (s *GeofenceService) LastKnownLocation(ctx context.Context, userID string) (*types.LocationUpdate, error) {
	loc, err := s.locations.GetLastKnown(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Location", userID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return loc, nil
}
