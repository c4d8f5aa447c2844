package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// OfflineService owns direct (non-batch) access to the versioned offline
// data store. Batch reconciliation lives in SyncCoordinator.
type OfflineService struct {
	items  store.OfflineStore
	logger *zap.SugaredLogger
}

func NewOfflineService(items store.OfflineStore) *OfflineService {
	return &OfflineService{
		items:  items,
		logger: logger.GetLogger().Named("offline-service"),
	}
}

// Store creates a new offline item at version 1.
func (s *OfflineService) Store(ctx context.Context, userID string, req *types.StoreOfflineDataRequest) (*types.OfflineDataItem, error) {
	if !req.Type.Valid() {
		return nil, apperrors.ValidationFailed("Invalid offline data type", string(req.Type))
	}
	if len(req.Data) == 0 {
		return nil, apperrors.ValidationFailed("Invalid offline data", "data is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = types.OfflinePriorityNormal
	}

	item := &types.OfflineDataItem{
		ID:           uuid.New().String(),
		UserID:       userID,
		Type:         req.Type,
		Data:         req.Data,
		ExpiresAt:    req.ExpiresAt,
		Priority:     priority,
		Size:         len(req.Data),
		Dependencies: req.Dependencies,
	}
	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.New(apperrors.ConflictError, "Offline item already exists", item.ID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return item, nil
}

// Get returns one item by ID, expired or not; expiry only gates purging.
func (s *OfflineService) Get(ctx context.Context, id string) (*types.OfflineDataItem, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Offline item", id)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return item, nil
}

// List returns a user's items, optionally filtered by type.
func (s *OfflineService) List(ctx context.Context, userID string, dataType types.OfflineDataType) ([]*types.OfflineDataItem, error) {
	if dataType != "" && !dataType.Valid() {
		return nil, apperrors.ValidationFailed("Invalid offline data type", string(dataType))
	}
	items, err := s.items.List(ctx, userID, dataType)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return items, nil
}

// Update commits new data against the caller's last-known version. On a
// version mismatch the returned error carries the current server version and
// the response includes server state; the caller resolves and resubmits.
func (s *OfflineService) Update(ctx context.Context, id string, req *types.UpdateOfflineDataRequest) (*types.OfflineDataItem, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.ValidationFailed("Invalid offline data", "data is required")
	}
	item, err := s.items.UpdateCAS(ctx, id, req.Data, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			serverVersion := 0
			if item != nil {
				serverVersion = item.Version
			}
			return item, apperrors.VersionConflict(id, req.Version, serverVersion)
		case errors.Is(err, store.ErrNotFound):
			return nil, apperrors.NotFound("Offline item", id)
		default:
			return nil, apperrors.NewDatabaseError(err)
		}
	}
	return item, nil
}

// Delete removes an item. Deletes are blocked while dependents remain unless
// force is set, which severs the dependency edges instead.
func (s *OfflineService) Delete(ctx context.Context, id string, force bool) error {
	err := s.items.Delete(ctx, id, force)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrDependency):
		dependents, depErr := s.items.Dependents(ctx, id)
		if depErr != nil {
			return apperrors.NewDatabaseError(depErr)
		}
		return apperrors.DependencyBlocked(id, dependents)
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("Offline item", id)
	default:
		return apperrors.NewDatabaseError(err)
	}
}

// PurgeExpired drops all items whose expiry passed.
func (s *OfflineService) PurgeExpired(ctx context.Context) (int, error) {
	purged, err := s.items.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}
	if purged > 0 {
		s.logger.Infow("Purged expired offline items", "count", purged)
	}
	return purged, nil
}

// Usage summarizes a user's offline footprint per data type.
func (s *OfflineService) Usage(ctx context.Context, userID string) (map[types.OfflineDataType]int, int, error) {
	items, err := s.items.List(ctx, userID, "")
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError(err)
	}
	byType := make(map[types.OfflineDataType]int)
	total := 0
	for _, item := range items {
		byType[item.Type]++
		total += item.Size
	}
	return byType, total, nil
}
