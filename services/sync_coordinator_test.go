package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/config"
	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncFixture() (*SyncCoordinator, *memory.OfflineStore) {
	items := memory.NewOfflineStore()
	coordinator := NewSyncCoordinator(items, memory.NewSyncSessionStore(),
		config.SyncConfig{BatchConcurrency: 4, MaxBatchSize: 100})
	return coordinator, items
}

func seedItem(t *testing.T, items *memory.OfflineStore, id, userID string) *types.OfflineDataItem {
	t.Helper()
	item := &types.OfflineDataItem{
		ID:     id,
		UserID: userID,
		Type:   types.OfflineTypeCart,
		Data:   json.RawMessage(`{"items":1}`),
	}
	require.NoError(t, items.Create(context.Background(), item))
	return item
}

func TestSyncCoordinator_MixedBatchOutcomes(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "cart-1", "user-1")

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusSyncing, session.Status)

	result, err := c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-2", Type: types.OfflineTypeCart, Action: types.SyncActionCreate, Data: json.RawMessage(`{"items":2}`)},
		{ID: "cart-1", Action: types.SyncActionUpdate, Data: json.RawMessage(`{"items":9}`), Version: 99},
		{ID: "missing", Action: types.SyncActionUpdate, Data: json.RawMessage(`{}`), Version: 1},
	})
	require.NoError(t, err)

	require.Len(t, result.Successful, 1)
	assert.Equal(t, "cart-2", result.Successful[0].ID)
	assert.Equal(t, 1, result.Successful[0].NewVersion)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "cart-1", result.Conflicts[0].ID)
	assert.Equal(t, 1, result.Conflicts[0].ServerVersion)
	assert.Equal(t, 99, result.Conflicts[0].ClientVersion)
	assert.JSONEq(t, `{"items":1}`, string(result.Conflicts[0].Data))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "missing", result.Errors[0].ID)

	status, err := c.Status(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Progress.Total)
	assert.Equal(t, 1, status.Progress.Completed)
	assert.Equal(t, 1, status.Progress.Failed)
	assert.Equal(t, 1, status.Stats.Uploaded)
	assert.Equal(t, 1, status.Stats.Conflicts)
	assert.Len(t, status.Errors, 1)
}

func TestSyncCoordinator_ResubmitAfterConflictCountsResolved(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "cart-1", "user-1")

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	result, err := c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Action: types.SyncActionUpdate, Data: json.RawMessage(`{"items":9}`), Version: 7},
	})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	serverVersion := result.Conflicts[0].ServerVersion

	// Resubmitting against the server version commits and counts as resolved.
	result, err = c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Action: types.SyncActionUpdate, Data: json.RawMessage(`{"items":9}`), Version: serverVersion},
	})
	require.NoError(t, err)
	require.Len(t, result.Successful, 1)
	assert.Equal(t, serverVersion+1, result.Successful[0].NewVersion)

	status, err := c.Status(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.Conflicts)
	assert.Equal(t, 1, status.Stats.Resolved)
}

func TestSyncCoordinator_CreateConflictReturnsServerState(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "cart-1", "user-1")

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	result, err := c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Type: types.OfflineTypeCart, Action: types.SyncActionCreate, Data: json.RawMessage(`{"items":5}`)},
	})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.JSONEq(t, `{"items":1}`, string(result.Conflicts[0].Data))
}

func TestSyncCoordinator_BatchValidation(t *testing.T) {
	c, _ := newSyncFixture()
	ctx := context.Background()

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	_, err = c.ProcessBatch(ctx, session.ID, nil)
	assert.Error(t, err)

	oversized := make([]types.SyncChange, 101)
	for i := range oversized {
		oversized[i] = types.SyncChange{ID: "x", Action: types.SyncActionDelete}
	}
	_, err = c.ProcessBatch(ctx, session.ID, oversized)
	assert.Error(t, err)
}

func TestSyncCoordinator_PauseRejectsBatchesResumeAccepts(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "cart-1", "user-1")

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	paused, err := c.Control(ctx, session.ID, types.SyncControlPause)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusPaused, paused.Status)

	_, err = c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Action: types.SyncActionUpdate, Data: json.RawMessage(`{"items":2}`), Version: 1},
	})
	assert.Error(t, err)

	resumed, err := c.Control(ctx, session.ID, types.SyncControlResume)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusSyncing, resumed.Status)

	result, err := c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Action: types.SyncActionUpdate, Data: json.RawMessage(`{"items":2}`), Version: 1},
	})
	require.NoError(t, err)
	assert.Len(t, result.Successful, 1)
}

func TestSyncCoordinator_CancelTerminatesSession(t *testing.T) {
	c, _ := newSyncFixture()
	ctx := context.Background()

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	cancelled, err := c.Control(ctx, session.ID, types.SyncControlCancel)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusFailed, cancelled.Status)
	require.NotNil(t, cancelled.EndTime)
	require.Len(t, cancelled.Errors, 1)
	assert.Equal(t, "cancelled", cancelled.Errors[0].Code)

	// Terminal sessions reject further transitions and batches.
	_, err = c.Control(ctx, session.ID, types.SyncControlResume)
	assert.Error(t, err)
	_, err = c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "cart-1", Action: types.SyncActionDelete},
	})
	assert.Error(t, err)
}

func TestSyncCoordinator_Complete(t *testing.T) {
	c, _ := newSyncFixture()
	ctx := context.Background()

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	done, err := c.Complete(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusCompleted, done.Status)
	assert.Equal(t, 100.0, done.Progress.Percentage)
	require.NotNil(t, done.EndTime)

	_, err = c.Complete(ctx, session.ID)
	assert.Error(t, err)
}

func TestSyncCoordinator_FullSyncPurgesAndDownloads(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "cart-1", "user-1")
	seedItem(t, items, "cart-2", "user-1")

	expired := time.Now().UTC().Add(-time.Hour)
	stale := &types.OfflineDataItem{
		ID:        "stale",
		UserID:    "user-1",
		Type:      types.OfflineTypeSearch,
		Data:      json.RawMessage(`{}`),
		ExpiresAt: &expired,
	}
	require.NoError(t, items.Create(ctx, stale))

	got, session, err := c.FullSync(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, types.SyncTypeFull, session.Type)
	assert.Equal(t, types.SyncStatusCompleted, session.Status)
	assert.Equal(t, 2, session.Stats.Downloaded)
}

func TestSyncCoordinator_DeleteBlockedByDependents(t *testing.T) {
	c, items := newSyncFixture()
	ctx := context.Background()

	seedItem(t, items, "product-1", "user-1")
	dependent := &types.OfflineDataItem{
		ID:           "cart-1",
		UserID:       "user-1",
		Type:         types.OfflineTypeCart,
		Data:         json.RawMessage(`{}`),
		Dependencies: []string{"product-1"},
	}
	require.NoError(t, items.Create(ctx, dependent))

	session, err := c.Start(ctx, "user-1", types.SyncTypeIncremental)
	require.NoError(t, err)

	result, err := c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "product-1", Action: types.SyncActionDelete},
	})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	result, err = c.ProcessBatch(ctx, session.ID, []types.SyncChange{
		{ID: "product-1", Action: types.SyncActionDelete, Force: true},
	})
	require.NoError(t, err)
	assert.Len(t, result.Successful, 1)
}
