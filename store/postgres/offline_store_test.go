package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offlineRowColumns = []string{
	"id", "user_id", "item_type", "data", "version", "last_modified",
	"expires_at", "priority", "size_bytes", "dependencies",
}

func TestOfflineStore_Create_DuplicateID(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectExec("INSERT INTO offline_items").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	s := NewOfflineStore(mockDB)
	item := &types.OfflineDataItem{
		ID:     "item-1",
		UserID: "user-1",
		Type:   types.OfflineTypeProduct,
		Data:   json.RawMessage(`{"name":"widget"}`),
	}
	err = s.Create(context.Background(), item)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOfflineStore_UpdateCAS_Commits(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	data := json.RawMessage(`{"name":"widget","price":12}`)
	now := time.Now().UTC()
	mockDB.ExpectQuery("UPDATE offline_items").
		WithArgs("item-1", []byte(data), len(data), 3).
		WillReturnRows(pgxmock.NewRows(offlineRowColumns).
			AddRow("item-1", "user-1", "product", []byte(data), 4, now,
				(*time.Time)(nil), "normal", len(data), []string{}))

	s := NewOfflineStore(mockDB)
	item, err := s.UpdateCAS(context.Background(), "item-1", data, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Version)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOfflineStore_UpdateCAS_VersionMismatch(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	data := json.RawMessage(`{"name":"widget"}`)
	serverData := json.RawMessage(`{"name":"widget","price":15}`)
	now := time.Now().UTC()

	// The conditional update matches nothing, then the current row is
	// fetched so the caller sees server state.
	mockDB.ExpectQuery("UPDATE offline_items").
		WithArgs("item-1", []byte(data), len(data), 3).
		WillReturnRows(pgxmock.NewRows(offlineRowColumns))
	mockDB.ExpectQuery("SELECT (.+) FROM offline_items WHERE id").
		WithArgs("item-1").
		WillReturnRows(pgxmock.NewRows(offlineRowColumns).
			AddRow("item-1", "user-1", "product", []byte(serverData), 5, now,
				(*time.Time)(nil), "normal", len(serverData), []string{}))

	s := NewOfflineStore(mockDB)
	item, err := s.UpdateCAS(context.Background(), "item-1", data, 3)
	assert.ErrorIs(t, err, store.ErrConflict)
	require.NotNil(t, item)
	assert.Equal(t, 5, item.Version)
	assert.JSONEq(t, string(serverData), string(item.Data))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOfflineStore_Delete_BlockedByDependents(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM offline_items WHERE dependencies").
		WithArgs("cat-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("prod-1"))
	mockDB.ExpectRollback()

	s := NewOfflineStore(mockDB)
	err = s.Delete(context.Background(), "cat-1", false)
	assert.ErrorIs(t, err, store.ErrDependency)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOfflineStore_Delete_ForceRemovesEdges(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM offline_items WHERE dependencies").
		WithArgs("cat-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("prod-1"))
	mockDB.ExpectExec("UPDATE offline_items").
		WithArgs("cat-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockDB.ExpectExec("DELETE FROM offline_items").
		WithArgs("cat-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mockDB.ExpectCommit()

	s := NewOfflineStore(mockDB)
	err = s.Delete(context.Background(), "cat-1", true)
	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOfflineStore_PurgeExpired(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	now := time.Now().UTC()
	mockDB.ExpectExec("DELETE FROM offline_items WHERE expires_at").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	s := NewOfflineStore(mockDB)
	purged, err := s.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, purged)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
