package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// GeofenceStore is the pgx implementation of store.GeofenceStore.
type GeofenceStore struct {
	db DB
}

func NewGeofenceStore(db DB) *GeofenceStore {
	return &GeofenceStore{db: db}
}

const geofenceColumns = `id, name, latitude, longitude, radius, fence_type, actions, created_at`

func (s *GeofenceStore) Create(ctx context.Context, g *types.Geofence) error {
	actions := g.Actions
	if actions == nil {
		actions = []types.GeofenceAction{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal geofence actions: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO geofences (`+geofenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.Name, g.Latitude, g.Longitude, g.Radius,
		string(g.Type), actionsJSON, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create geofence: %w", err)
	}
	return nil
}

func (s *GeofenceStore) Get(ctx context.Context, id string) (*types.Geofence, error) {
	row := s.db.QueryRow(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)
	g, err := scanGeofence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get geofence: %w", err)
	}
	return g, nil
}

func (s *GeofenceStore) List(ctx context.Context) ([]*types.Geofence, error) {
	rows, err := s.db.Query(ctx, `SELECT `+geofenceColumns+` FROM geofences ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list geofences: %w", err)
	}
	defer rows.Close()

	var out []*types.Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate geofence rows: %w", err)
	}
	return out, nil
}

func (s *GeofenceStore) GetPresence(ctx context.Context, userID, geofenceID string) (*types.GeofencePresence, error) {
	var p types.GeofencePresence
	err := s.db.QueryRow(ctx, `
		SELECT user_id, geofence_id, inside, since, dwell_fired
		FROM geofence_presence
		WHERE user_id = $1 AND geofence_id = $2`, userID, geofenceID).
		Scan(&p.UserID, &p.GeofenceID, &p.Inside, &p.Since, &p.DwellFired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get geofence presence: %w", err)
	}
	return &p, nil
}

func (s *GeofenceStore) SetPresence(ctx context.Context, p *types.GeofencePresence) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO geofence_presence (user_id, geofence_id, inside, since, dwell_fired)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, geofence_id) DO UPDATE SET
			inside = EXCLUDED.inside,
			since = EXCLUDED.since,
			dwell_fired = EXCLUDED.dwell_fired`,
		p.UserID, p.GeofenceID, p.Inside, p.Since, p.DwellFired)
	if err != nil {
		return fmt.Errorf("failed to set geofence presence: %w", err)
	}
	return nil
}

func (s *GeofenceStore) AppendEvent(ctx context.Context, e *types.GeofenceEvent) error {
	geofence, err := json.Marshal(e.Geofence)
	if err != nil {
		return fmt.Errorf("failed to marshal event geofence: %w", err)
	}
	eventActions := e.Actions
	if eventActions == nil {
		eventActions = []types.TriggeredAction{}
	}
	actions, err := json.Marshal(eventActions)
	if err != nil {
		return fmt.Errorf("failed to marshal event actions: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO geofence_events (id, user_id, device_id, event_type, geofence, ts, accuracy, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.DeviceID, string(e.Type), geofence, e.Timestamp, e.Accuracy, actions)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to append geofence event: %w", err)
	}
	return nil
}

func (s *GeofenceStore) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*types.GeofenceEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, device_id, event_type, geofence, ts, accuracy, actions
		FROM geofence_events
		WHERE user_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list geofence events: %w", err)
	}
	defer rows.Close()

	var out []*types.GeofenceEvent
	for rows.Next() {
		var (
			e         types.GeofenceEvent
			eventType string
			geofence  []byte
			actions   []byte
		)
		err := rows.Scan(&e.ID, &e.UserID, &e.DeviceID, &eventType,
			&geofence, &e.Timestamp, &e.Accuracy, &actions)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence event row: %w", err)
		}
		e.Type = types.GeofenceEventType(eventType)
		if err := json.Unmarshal(geofence, &e.Geofence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event geofence: %w", err)
		}
		if err := json.Unmarshal(actions, &e.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event actions: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate geofence event rows: %w", err)
	}
	return out, nil
}

func scanGeofence(row pgx.Row) (*types.Geofence, error) {
	var (
		g         types.Geofence
		fenceType string
		actions   []byte
	)
	err := row.Scan(&g.ID, &g.Name, &g.Latitude, &g.Longitude, &g.Radius,
		&fenceType, &actions, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Type = types.GeofenceType(fenceType)
	if err := json.Unmarshal(actions, &g.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geofence actions: %w", err)
	}
	return &g, nil
}
