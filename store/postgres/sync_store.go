package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
)

// SyncSessionStore is the pgx implementation of store.SyncSessionStore.
// Progress, stats and errors are stored as jsonb documents.
type SyncSessionStore struct {
	db DB
}

func NewSyncSessionStore(db DB) *SyncSessionStore {
	return &SyncSessionStore{db: db}
}

const syncColumns = `id, user_id, sync_type, status, progress, stats, errors, start_time, end_time`

func (s *SyncSessionStore) Create(ctx context.Context, session *types.SyncSession) error {
	progress, stats, errs, err := marshalSyncBlobs(session)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO sync_sessions (`+syncColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.UserID, string(session.Type), string(session.Status),
		progress, stats, errs, session.StartTime, session.EndTime)
	if err != nil {
		return fmt.Errorf("failed to create sync session: %w", err)
	}
	return nil
}

func (s *SyncSessionStore) Get(ctx context.Context, id string) (*types.SyncSession, error) {
	row := s.db.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync_sessions WHERE id = $1`, id)
	session, err := scanSyncSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync session: %w", err)
	}
	return session, nil
}

func (s *SyncSessionStore) Update(ctx context.Context, session *types.SyncSession) error {
	progress, stats, errs, err := marshalSyncBlobs(session)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE sync_sessions
		SET status = $2, progress = $3, stats = $4, errors = $5, end_time = $6
		WHERE id = $1`,
		session.ID, string(session.Status), progress, stats, errs, session.EndTime)
	if err != nil {
		return fmt.Errorf("failed to update sync session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SyncSessionStore) ListByUser(ctx context.Context, userID string) ([]*types.SyncSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+syncColumns+` FROM sync_sessions WHERE user_id = $1 ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.SyncSession
	for rows.Next() {
		session, err := scanSyncSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync session row: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync session rows: %w", err)
	}
	return out, nil
}

func marshalSyncBlobs(session *types.SyncSession) (progress, stats, errs []byte, err error) {
	if progress, err = json.Marshal(session.Progress); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal sync progress: %w", err)
	}
	if stats, err = json.Marshal(session.Stats); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal sync stats: %w", err)
	}
	sessionErrs := session.Errors
	if sessionErrs == nil {
		sessionErrs = []types.SyncError{}
	}
	if errs, err = json.Marshal(sessionErrs); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal sync errors: %w", err)
	}
	return progress, stats, errs, nil
}

func scanSyncSession(row pgx.Row) (*types.SyncSession, error) {
	var (
		session  types.SyncSession
		syncType string
		status   string
		progress []byte
		stats    []byte
		errs     []byte
	)
	err := row.Scan(&session.ID, &session.UserID, &syncType, &status,
		&progress, &stats, &errs, &session.StartTime, &session.EndTime)
	if err != nil {
		return nil, err
	}
	session.Type = types.SyncType(syncType)
	session.Status = types.SyncStatus(status)
	if err := json.Unmarshal(progress, &session.Progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync progress: %w", err)
	}
	if err := json.Unmarshal(stats, &session.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync stats: %w", err)
	}
	if err := json.Unmarshal(errs, &session.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync errors: %w", err)
	}
	return &session, nil
}
