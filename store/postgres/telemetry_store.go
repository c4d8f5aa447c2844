package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// TelemetryStore is the pgx implementation of store.TelemetryStore.
type TelemetryStore struct {
	db DB
}

func NewTelemetryStore(db DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

const sessionColumns = `session_id, user_id, device_id, start_time, end_time, duration,
	activities, network, performance`

func (s *TelemetryStore) CreateSession(ctx context.Context, sess *types.AppSession) error {
	activities, network, performance, err := marshalSessionBlobs(sess)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO app_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.SessionID, sess.UserID, sess.DeviceID, sess.StartTime, sess.EndTime,
		sess.Duration, activities, network, performance)
	if err != nil {
		return fmt.Errorf("failed to create app session: %w", err)
	}
	return nil
}

func (s *TelemetryStore) GetSession(ctx context.Context, sessionID string) (*types.AppSession, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM app_sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get app session: %w", err)
	}
	return sess, nil
}

func (s *TelemetryStore) UpdateSession(ctx context.Context, sess *types.AppSession) error {
	activities, network, performance, err := marshalSessionBlobs(sess)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE app_sessions
		SET end_time = $2, duration = $3, activities = $4, network = $5, performance = $6
		WHERE session_id = $1`,
		sess.SessionID, sess.EndTime, sess.Duration, activities, network, performance)
	if err != nil {
		return fmt.Errorf("failed to update app session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *TelemetryStore) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]*types.AppSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM app_sessions
		WHERE user_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list app sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.AppSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate app session rows: %w", err)
	}
	return out, nil
}

func (s *TelemetryStore) CreateCrashReport(ctx context.Context, c *types.CrashReport) error {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal crash metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO crash_reports
			(id, device_id, user_id, ts, app_version, os_version, stack_trace, metadata, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.DeviceID, c.UserID, c.Timestamp, c.AppVersion, c.OSVersion,
		c.StackTrace, metadataJSON, c.Resolved)
	if err != nil {
		return fmt.Errorf("failed to create crash report: %w", err)
	}
	return nil
}

func (s *TelemetryStore) ListCrashReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.CrashReport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, device_id, user_id, ts, app_version, os_version, stack_trace, metadata, resolved
		FROM crash_reports
		WHERE device_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts`, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list crash reports: %w", err)
	}
	defer rows.Close()

	var out []*types.CrashReport
	for rows.Next() {
		var (
			c        types.CrashReport
			metadata []byte
		)
		err := rows.Scan(&c.ID, &c.DeviceID, &c.UserID, &c.Timestamp,
			&c.AppVersion, &c.OSVersion, &c.StackTrace, &metadata, &c.Resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crash report row: %w", err)
		}
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal crash metadata: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crash report rows: %w", err)
	}
	return out, nil
}

func (s *TelemetryStore) CreatePerformanceReport(ctx context.Context, p *types.PerformanceReport) error {
	metrics, err := json.Marshal(p.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal performance metrics: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO performance_reports (id, device_id, session_id, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.DeviceID, p.SessionID, metrics, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create performance report: %w", err)
	}
	return nil
}

func (s *TelemetryStore) ListPerformanceReports(ctx context.Context, deviceID string, from, to time.Time) ([]*types.PerformanceReport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, device_id, session_id, metrics, created_at
		FROM performance_reports
		WHERE device_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at`, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance reports: %w", err)
	}
	defer rows.Close()

	var out []*types.PerformanceReport
	for rows.Next() {
		var (
			p       types.PerformanceReport
			metrics []byte
		)
		err := rows.Scan(&p.ID, &p.DeviceID, &p.SessionID, &metrics, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance report row: %w", err)
		}
		if err := json.Unmarshal(metrics, &p.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal performance metrics: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate performance report rows: %w", err)
	}
	return out, nil
}

func marshalSessionBlobs(sess *types.AppSession) (activities, network, performance []byte, err error) {
	acts := sess.Activities
	if acts == nil {
		acts = []types.SessionActivity{}
	}
	if activities, err = json.Marshal(acts); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal session activities: %w", err)
	}
	if network, err = json.Marshal(sess.Network); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal session network: %w", err)
	}
	if performance, err = json.Marshal(sess.Performance); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal session performance: %w", err)
	}
	return activities, network, performance, nil
}

func scanSession(row pgx.Row) (*types.AppSession, error) {
	var (
		sess        types.AppSession
		activities  []byte
		network     []byte
		performance []byte
	)
	err := row.Scan(&sess.SessionID, &sess.UserID, &sess.DeviceID,
		&sess.StartTime, &sess.EndTime, &sess.Duration,
		&activities, &network, &performance)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(activities, &sess.Activities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session activities: %w", err)
	}
	if err := json.Unmarshal(network, &sess.Network); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session network: %w", err)
	}
	if err := json.Unmarshal(performance, &sess.Performance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session performance: %w", err)
	}
	return &sess, nil
}
