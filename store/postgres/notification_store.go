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

// NotificationStore is the pgx implementation of store.NotificationStore.
// The delivery ledger and the error histogram live in side tables keyed by
// notification ID.
type NotificationStore struct {
	db DB
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationColumns = `id, user_id, device_id, notif_type, title, body, data, image_url,
	action_buttons, priority, scheduled_at, scheduled_tz, targeting, status,
	sent_count, delivered_count, opened_count, clicked_count, dismissed_count,
	created_at, sent_at`

var counterColumns = map[string]string{
	store.CounterSent:      "sent_count",
	store.CounterDelivered: "delivered_count",
	store.CounterOpened:    "opened_count",
	store.CounterClicked:   "clicked_count",
	store.CounterDismissed: "dismissed_count",
}

func (s *NotificationStore) Create(ctx context.Context, n *types.PushNotification) error {
	data, buttons, targeting, err := marshalNotificationBlobs(n)
	if err != nil {
		return err
	}

	var scheduledAt *time.Time
	var scheduledTZ string
	if n.Scheduled != nil {
		scheduledAt = &n.Scheduled.SendAt
		scheduledTZ = n.Scheduled.Timezone
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)`,
		n.ID, n.UserID, n.DeviceID, string(n.Type), n.Title, n.Body, data,
		n.ImageURL, buttons, string(n.Priority), scheduledAt, scheduledTZ,
		targeting, string(n.Status),
		n.Analytics.SentCount, n.Analytics.DeliveredCount, n.Analytics.OpenedCount,
		n.Analytics.ClickedCount, n.Analytics.DismissedCount,
		n.CreatedAt, n.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, id string) (*types.PushNotification, error) {
	row := s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if n.Analytics.Errors, err = s.loadErrors(ctx, id); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationStore) Update(ctx context.Context, n *types.PushNotification) error {
	data, buttons, targeting, err := marshalNotificationBlobs(n)
	if err != nil {
		return err
	}

	var scheduledAt *time.Time
	var scheduledTZ string
	if n.Scheduled != nil {
		scheduledAt = &n.Scheduled.SendAt
		scheduledTZ = n.Scheduled.Timezone
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET title = $2, body = $3, data = $4, image_url = $5, action_buttons = $6,
			priority = $7, scheduled_at = $8, scheduled_tz = $9, targeting = $10,
			status = $11, sent_at = $12
		WHERE id = $1`,
		n.ID, n.Title, n.Body, data, n.ImageURL, buttons,
		string(n.Priority), scheduledAt, scheduledTZ, targeting,
		string(n.Status), n.SentAt)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) TransitionStatus(ctx context.Context, id string, from, to types.NotificationStatus) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to transition notification status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) ListDue(ctx context.Context, now time.Time) ([]*types.PushNotification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (s *NotificationStore) ListHistory(ctx context.Context, userID, deviceID string, limit int) ([]*types.PushNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR device_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`, userID, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification history: %w", err)
	}
	return collectNotifications(rows)
}

func (s *NotificationStore) RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error {
	// First write wins; replays after a restart are no-ops.
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_deliveries
			(notification_id, device_id, outcome, error_code, attempts, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (notification_id, device_id) DO NOTHING`,
		rec.NotificationID, rec.DeviceID, string(rec.Outcome),
		rec.ErrorCode, rec.Attempts, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListDeliveries(ctx context.Context, notificationID string) ([]*types.DeliveryRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT notification_id, device_id, outcome, error_code, attempts, completed_at
		FROM notification_deliveries
		WHERE notification_id = $1
		ORDER BY device_id`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*types.DeliveryRecord
	for rows.Next() {
		var (
			rec     types.DeliveryRecord
			outcome string
		)
		err := rows.Scan(&rec.NotificationID, &rec.DeviceID, &outcome,
			&rec.ErrorCode, &rec.Attempts, &rec.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		rec.Outcome = types.DeliveryOutcome(outcome)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery rows: %w", err)
	}
	return out, nil
}

func (s *NotificationStore) IncrementCounter(ctx context.Context, id string, counter string, delta int) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown analytics counter %q", counter)
	}
	// column comes from the fixed counterColumns map, never user input.
	query := fmt.Sprintf(`UPDATE notifications SET %s = %s + $2 WHERE id = $1`, column, column)
	tag, err := s.db.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) RecordErrorCode(ctx context.Context, id string, code string, message string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_errors (notification_id, code, message, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (notification_id, code) DO UPDATE SET
			count = notification_errors.count + 1`,
		id, code, message)
	if err != nil {
		return fmt.Errorf("failed to record notification error: %w", err)
	}
	return nil
}

func (s *NotificationStore) loadErrors(ctx context.Context, id string) ([]types.NotificationError, error) {
	rows, err := s.db.Query(ctx, `
		SELECT code, message, count FROM notification_errors
		WHERE notification_id = $1
		ORDER BY code`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification errors: %w", err)
	}
	defer rows.Close()

	var out []types.NotificationError
	for rows.Next() {
		var e types.NotificationError
		if err := rows.Scan(&e.Code, &e.Message, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan notification error row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification error rows: %w", err)
	}
	return out, nil
}

func marshalNotificationBlobs(n *types.PushNotification) (data, buttons, targeting []byte, err error) {
	payload := n.Data
	if payload == nil {
		payload = map[string]any{}
	}
	if data, err = json.Marshal(payload); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal notification data: %w", err)
	}
	actionButtons := n.ActionButtons
	if actionButtons == nil {
		actionButtons = []types.ActionButton{}
	}
	if buttons, err = json.Marshal(actionButtons); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal action buttons: %w", err)
	}
	if targeting, err = json.Marshal(n.Targeting); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal targeting: %w", err)
	}
	return data, buttons, targeting, nil
}

func scanNotification(row pgx.Row) (*types.PushNotification, error) {
	var (
		n           types.PushNotification
		notifType   string
		priority    string
		status      string
		data        []byte
		buttons     []byte
		targeting   []byte
		scheduledAt *time.Time
		scheduledTZ string
	)
	err := row.Scan(&n.ID, &n.UserID, &n.DeviceID, &notifType, &n.Title, &n.Body,
		&data, &n.ImageURL, &buttons, &priority, &scheduledAt, &scheduledTZ,
		&targeting, &status,
		&n.Analytics.SentCount, &n.Analytics.DeliveredCount, &n.Analytics.OpenedCount,
		&n.Analytics.ClickedCount, &n.Analytics.DismissedCount,
		&n.CreatedAt, &n.SentAt)
	if err != nil {
		return nil, err
	}
	n.Type = types.NotificationType(notifType)
	n.Priority = types.NotificationPriority(priority)
	n.Status = types.NotificationStatus(status)
	if scheduledAt != nil {
		n.Scheduled = &types.NotificationSchedule{SendAt: *scheduledAt, Timezone: scheduledTZ}
	}
	if err := json.Unmarshal(data, &n.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
	}
	if err := json.Unmarshal(buttons, &n.ActionButtons); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action buttons: %w", err)
	}
	if err := json.Unmarshal(targeting, &n.Targeting); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targeting: %w", err)
	}
	return &n, nil
}

func collectNotifications(rows pgx.Rows) ([]*types.PushNotification, error) {
	defer rows.Close()

	var out []*types.PushNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification rows: %w", err)
	}
	return out, nil
}
