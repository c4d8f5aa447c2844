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

// OfflineStore is the pgx implementation of store.OfflineStore. Version
// checks ride on conditional UPDATEs, so two racing updates with the same
// expected version resolve to exactly one winner inside Postgres.
type OfflineStore struct {
	db DB
}

func NewOfflineStore(db DB) *OfflineStore {
	return &OfflineStore{db: db}
}

const offlineColumns = `id, user_id, item_type, data, version, last_modified,
	expires_at, priority, size_bytes, dependencies`

func (s *OfflineStore) Create(ctx context.Context, item *types.OfflineDataItem) error {
	item.Version = 1
	if item.LastModified.IsZero() {
		item.LastModified = time.Now().UTC()
	}
	deps := item.Dependencies
	if deps == nil {
		deps = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO offline_items (`+offlineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.UserID, string(item.Type), []byte(item.Data),
		item.Version, item.LastModified, item.ExpiresAt,
		string(item.Priority), item.Size, deps)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to create offline item: %w", err)
	}
	return nil
}

func (s *OfflineStore) Get(ctx context.Context, id string) (*types.OfflineDataItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offlineColumns+` FROM offline_items WHERE id = $1`, id)
	item, err := scanOfflineItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offline item: %w", err)
	}
	return item, nil
}

func (s *OfflineStore) List(ctx context.Context, userID string, dataType types.OfflineDataType) ([]*types.OfflineDataItem, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if dataType == "" {
		rows, err = s.db.Query(ctx,
			`SELECT `+offlineColumns+` FROM offline_items WHERE user_id = $1 ORDER BY last_modified DESC`,
			userID)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+offlineColumns+` FROM offline_items WHERE user_id = $1 AND item_type = $2 ORDER BY last_modified DESC`,
			userID, string(dataType))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list offline items: %w", err)
	}
	defer rows.Close()

	var out []*types.OfflineDataItem
	for rows.Next() {
		item, err := scanOfflineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offline item row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offline item rows: %w", err)
	}
	return out, nil
}

func (s *OfflineStore) UpdateCAS(ctx context.Context, id string, data json.RawMessage, expectedVersion int) (*types.OfflineDataItem, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE offline_items
		SET data = $2, version = version + 1, last_modified = NOW(), size_bytes = $3
		WHERE id = $1 AND version = $4
		RETURNING `+offlineColumns,
		id, []byte(data), len(data), expectedVersion)

	item, err := scanOfflineItem(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update offline item: %w", err)
	}

	// No row matched: either the item is gone or the version moved. Return
	// the current server state so the caller can resolve the conflict.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return current, store.ErrConflict
}

func (s *OfflineStore) Delete(ctx context.Context, id string, force bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	dependents, err := dependentsQuery(ctx, tx, id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		if !force {
			return store.ErrDependency
		}
		// Force drops the dependency edge from dependents but never
		// deletes the dependents themselves.
		_, err = tx.Exec(ctx, `
			UPDATE offline_items
			SET dependencies = array_remove(dependencies, $1)
			WHERE dependencies @> ARRAY[$1]`, id)
		if err != nil {
			return fmt.Errorf("failed to remove dependency edges: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM offline_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete offline item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *OfflineStore) Dependents(ctx context.Context, id string) ([]string, error) {
	return dependentsQuery(ctx, s.db, id)
}

func (s *OfflineStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM offline_items WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired offline items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// querier covers both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func dependentsQuery(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT id FROM offline_items WHERE dependencies @> ARRAY[$1] ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependent id: %w", err)
		}
		out = append(out, depID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dependents: %w", err)
	}
	return out, nil
}

func scanOfflineItem(row pgx.Row) (*types.OfflineDataItem, error) {
	var (
		item     types.OfflineDataItem
		itemType string
		priority string
		data     []byte
	)
	err := row.Scan(&item.ID, &item.UserID, &itemType, &data, &item.Version,
		&item.LastModified, &item.ExpiresAt, &priority, &item.Size, &item.Dependencies)
	if err != nil {
		return nil, err
	}
	item.Type = types.OfflineDataType(itemType)
	item.Priority = types.OfflineDataPriority(priority)
	item.Data = json.RawMessage(data)
	return &item, nil
}
