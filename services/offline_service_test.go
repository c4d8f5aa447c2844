package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marketloop/mobile-backend/store/memory"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineService_StoreAndGet(t *testing.T) {
	svc := NewOfflineService(memory.NewOfflineStore())
	ctx := context.Background()

	item, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeProduct,
		Data: json.RawMessage(`{"name":"lamp","price":49.99}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Version)
	assert.Equal(t, types.OfflinePriorityNormal, item.Priority)
	assert.NotEmpty(t, item.ID)

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"lamp","price":49.99}`, string(got.Data))
}

func TestOfflineService_StoreValidation(t *testing.T) {
	svc := NewOfflineService(memory.NewOfflineStore())
	ctx := context.Background()

	_, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: "hologram",
		Data: json.RawMessage(`{}`),
	})
	assert.Error(t, err)

	_, err = svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeProduct,
	})
	assert.Error(t, err)
}

func TestOfflineService_UpdateVersionConflictReturnsServerState(t *testing.T) {
	svc := NewOfflineService(memory.NewOfflineStore())
	ctx := context.Background()

	item, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeCart,
		Data: json.RawMessage(`{"items":1}`),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, item.ID, &types.UpdateOfflineDataRequest{
		Data:    json.RawMessage(`{"items":2}`),
		Version: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// A stale client sees the server's current state alongside the error.
	server, err := svc.Update(ctx, item.ID, &types.UpdateOfflineDataRequest{
		Data:    json.RawMessage(`{"items":99}`),
		Version: 1,
	})
	require.Error(t, err)
	require.NotNil(t, server)
	assert.Equal(t, 2, server.Version)
	assert.JSONEq(t, `{"items":2}`, string(server.Data))
}

func TestOfflineService_ListFilterByType(t *testing.T) {
	svc := NewOfflineService(memory.NewOfflineStore())
	ctx := context.Background()

	_, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeProduct, Data: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	_, err = svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeCart, Data: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	all, err := svc.List(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	carts, err := svc.List(ctx, "user-1", types.OfflineTypeCart)
	require.NoError(t, err)
	assert.Len(t, carts, 1)

	_, err = svc.List(ctx, "user-1", "hologram")
	assert.Error(t, err)
}

func TestOfflineService_DeleteBlockedByDependents(t *testing.T) {
	items := memory.NewOfflineStore()
	svc := NewOfflineService(items)
	ctx := context.Background()

	product, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeProduct, Data: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	cart, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type:         types.OfflineTypeCart,
		Data:         json.RawMessage(`{}`),
		Dependencies: []string{product.ID},
	})
	require.NoError(t, err)

	assert.Error(t, svc.Delete(ctx, product.ID, false))

	// Force severs the edge but keeps the dependent.
	require.NoError(t, svc.Delete(ctx, product.ID, true))
	got, err := svc.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies)
}

func TestOfflineService_PurgeExpiredAndUsage(t *testing.T) {
	svc := NewOfflineService(memory.NewOfflineStore())
	ctx := context.Background()

	expired := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type:      types.OfflineTypeSearch,
		Data:      json.RawMessage(`{"q":"lamps"}`),
		ExpiresAt: &expired,
	})
	require.NoError(t, err)
	_, err = svc.Store(ctx, "user-1", &types.StoreOfflineDataRequest{
		Type: types.OfflineTypeProduct,
		Data: json.RawMessage(`{"name":"lamp"}`),
	})
	require.NoError(t, err)

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	byType, total, err := svc.Usage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, byType[types.OfflineTypeProduct])
	assert.Equal(t, len(`{"name":"lamp"}`), total)
}
