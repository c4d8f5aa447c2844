package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/mobile-backend/config"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// SyncCoordinator reconciles client-proposed batches against the offline
// store. Items in a batch commit independently: one conflict never blocks
// the rest. Conflict resolution is the caller's job; the coordinator hands
// back server state and counts a later successful resubmit as resolved.
type SyncCoordinator struct {
	items    store.OfflineStore
	sessions store.SyncSessionStore
	cfg      config.SyncConfig
	logger   *zap.SugaredLogger

	// Per-session IDs that conflicted earlier in the session, so a
	// successful resubmit can be counted as resolved.
	mu         sync.Mutex
	conflicted map[string]map[string]struct{}
}

func NewSyncCoordinator(items store.OfflineStore, sessions store.SyncSessionStore, cfg config.SyncConfig) *SyncCoordinator {
	return &SyncCoordinator{
		items:      items,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger.GetLogger().Named("sync-coordinator"),
		conflicted: make(map[string]map[string]struct{}),
	}
}

// Start opens a new sync session in the syncing state.
func (c *SyncCoordinator) Start(ctx context.Context, userID string, syncType types.SyncType) (*types.SyncSession, error) {
	if syncType == "" {
		syncType = types.SyncTypeIncremental
	}
	session := &types.SyncSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      syncType,
		Status:    types.SyncStatusSyncing,
		StartTime: time.Now().UTC(),
	}
	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	c.logger.Infow("Sync session started",
		"sessionID", session.ID, "userID", userID, "type", syncType)
	return session, nil
}

// ProcessBatch applies one batch of changes within a session. Items commit
// with bounded concurrency; outcomes are partitioned into successes,
// conflicts and errors. Paused and terminal sessions reject batches.
func (c *SyncCoordinator) ProcessBatch(ctx context.Context, sessionID string, changes []types.SyncChange) (*types.SyncResult, error) {
	if len(changes) == 0 {
		return nil, apperrors.ValidationFailed("Empty sync batch", "changes is required")
	}
	if len(changes) > c.cfg.MaxBatchSize {
		return nil, apperrors.ValidationFailed("Sync batch too large",
			fmt.Sprintf("batch of %d exceeds limit of %d", len(changes), c.cfg.MaxBatchSize))
	}

	session, err := c.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case types.SyncStatusSyncing:
	case types.SyncStatusPaused:
		return nil, apperrors.New(apperrors.ConflictError, "Sync session is paused", sessionID)
	default:
		return nil, apperrors.New(apperrors.ConflictError,
			fmt.Sprintf("Sync session is %s", session.Status), sessionID)
	}

	result := c.applyChanges(ctx, session.UserID, changes)

	// Fold the batch outcome into session progress and stats.
	c.mu.Lock()
	seen := c.conflicted[sessionID]
	if seen == nil {
		seen = make(map[string]struct{})
		c.conflicted[sessionID] = seen
	}
	resolved := 0
	for _, s := range result.Successful {
		if _, was := seen[s.ID]; was {
			resolved++
			delete(seen, s.ID)
		}
	}
	for _, conflict := range result.Conflicts {
		seen[conflict.ID] = struct{}{}
	}
	c.mu.Unlock()

	session.Progress.Total += len(changes)
	session.Progress.Completed += len(result.Successful)
	session.Progress.Failed += len(result.Errors)
	if session.Progress.Total > 0 {
		session.Progress.Percentage = float64(session.Progress.Completed) / float64(session.Progress.Total) * 100
	}
	session.Stats.Uploaded += len(result.Successful)
	session.Stats.Conflicts += len(result.Conflicts)
	session.Stats.Resolved += resolved
	for _, e := range result.Errors {
		session.Errors = append(session.Errors, types.SyncError{
			Code:    "item_error",
			Message: e.Error,
			Item:    e.ID,
		})
	}

	if err := c.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return result, nil
}

// applyChanges commits the batch with bounded concurrency, preserving the
// input order in the partitioned result.
func (c *SyncCoordinator) applyChanges(ctx context.Context, userID string, changes []types.SyncChange) *types.SyncResult {
	outcomes := make([]syncOutcome, len(changes))

	sem := make(chan struct{}, c.cfg.BatchConcurrency)
	var wg sync.WaitGroup
	for i := range changes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = c.applyChange(ctx, userID, changes[i])
		}(i)
	}
	wg.Wait()

	result := &types.SyncResult{
		Successful: []types.SyncItemSuccess{},
		Conflicts:  []types.SyncItemConflict{},
		Errors:     []types.SyncItemError{},
	}
	for _, o := range outcomes {
		switch {
		case o.success != nil:
			result.Successful = append(result.Successful, *o.success)
		case o.conflict != nil:
			result.Conflicts = append(result.Conflicts, *o.conflict)
		case o.err != nil:
			result.Errors = append(result.Errors, *o.err)
		}
	}
	return result
}

// syncOutcome holds exactly one of the three per-item verdicts.
type syncOutcome struct {
	success  *types.SyncItemSuccess
	conflict *types.SyncItemConflict
	err      *types.SyncItemError
}

func (c *SyncCoordinator) applyChange(ctx context.Context, userID string, change types.SyncChange) (o syncOutcome) {
	fail := func(msg string) {
		o.err = &types.SyncItemError{ID: change.ID, Error: msg}
	}

	switch change.Action {
	case types.SyncActionCreate:
		if !change.Type.Valid() {
			fail(fmt.Sprintf("unknown data type %q", change.Type))
			return
		}
		if len(change.Data) == 0 {
			fail("data is required for create")
			return
		}
		item := &types.OfflineDataItem{
			ID:       change.ID,
			UserID:   userID,
			Type:     change.Type,
			Data:     change.Data,
			Priority: types.OfflinePriorityNormal,
			Size:     len(change.Data),
		}
		if err := c.items.Create(ctx, item); err != nil {
			if errors.Is(err, store.ErrConflict) {
				current, getErr := c.items.Get(ctx, change.ID)
				if getErr != nil {
					fail("item already exists")
					return
				}
				o.conflict = &types.SyncItemConflict{
					ID:            change.ID,
					ServerVersion: current.Version,
					ClientVersion: change.Version,
					Data:          current.Data,
				}
				return
			}
			fail(err.Error())
			return
		}
		o.success = &types.SyncItemSuccess{ID: change.ID, NewVersion: item.Version}

	case types.SyncActionUpdate:
		if len(change.Data) == 0 {
			fail("data is required for update")
			return
		}
		item, err := c.items.UpdateCAS(ctx, change.ID, change.Data, change.Version)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				o.conflict = &types.SyncItemConflict{
					ID:            change.ID,
					ServerVersion: item.Version,
					ClientVersion: change.Version,
					Data:          item.Data,
				}
			case errors.Is(err, store.ErrNotFound):
				fail("item not found")
			default:
				fail(err.Error())
			}
			return
		}
		o.success = &types.SyncItemSuccess{ID: change.ID, NewVersion: item.Version}

	case types.SyncActionDelete:
		if err := c.items.Delete(ctx, change.ID, change.Force); err != nil {
			switch {
			case errors.Is(err, store.ErrDependency):
				fail("delete blocked by dependent items")
			case errors.Is(err, store.ErrNotFound):
				fail("item not found")
			default:
				fail(err.Error())
			}
			return
		}
		o.success = &types.SyncItemSuccess{ID: change.ID}

	default:
		fail(fmt.Sprintf("unknown action %q", change.Action))
	}
	return
}

// Control applies a pause, resume or cancel transition to a session.
// Progress survives pause/resume untouched: already-committed items are
// never re-processed because their versions moved on.
func (c *SyncCoordinator) Control(ctx context.Context, sessionID string, action types.SyncControlAction) (*types.SyncSession, error) {
	if !action.Valid() {
		return nil, apperrors.ValidationFailed("Invalid sync control action", string(action))
	}
	session, err := c.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, apperrors.New(apperrors.ConflictError,
			fmt.Sprintf("Sync session is already %s", session.Status), sessionID)
	}

	switch action {
	case types.SyncControlPause:
		if session.Status != types.SyncStatusSyncing {
			return nil, apperrors.New(apperrors.ConflictError, "Only a syncing session can be paused", sessionID)
		}
		session.Status = types.SyncStatusPaused
	case types.SyncControlResume:
		if session.Status != types.SyncStatusPaused {
			return nil, apperrors.New(apperrors.ConflictError, "Only a paused session can be resumed", sessionID)
		}
		session.Status = types.SyncStatusSyncing
	case types.SyncControlCancel:
		now := time.Now().UTC()
		session.Status = types.SyncStatusFailed
		session.EndTime = &now
		session.Errors = append(session.Errors, types.SyncError{
			Code:    "cancelled",
			Message: "sync cancelled by client",
		})
		c.forgetSession(sessionID)
	}

	if err := c.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	c.logger.Infow("Sync session transition",
		"sessionID", sessionID, "action", action, "status", session.Status)
	return session, nil
}

// Complete marks a session as finished.
func (c *SyncCoordinator) Complete(ctx context.Context, sessionID string) (*types.SyncSession, error) {
	session, err := c.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, apperrors.New(apperrors.ConflictError,
			fmt.Sprintf("Sync session is already %s", session.Status), sessionID)
	}
	now := time.Now().UTC()
	session.Status = types.SyncStatusCompleted
	session.EndTime = &now
	session.Progress.Percentage = 100
	if err := c.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	c.forgetSession(sessionID)
	c.logger.Infow("Sync session completed",
		"sessionID", sessionID,
		"uploaded", session.Stats.Uploaded,
		"conflicts", session.Stats.Conflicts,
		"resolved", session.Stats.Resolved)
	return session, nil
}

// FullSync purges expired items and returns the user's complete current
// dataset under a dedicated full-sync session.
func (c *SyncCoordinator) FullSync(ctx context.Context, userID string) ([]*types.OfflineDataItem, *types.SyncSession, error) {
	session, err := c.Start(ctx, userID, types.SyncTypeFull)
	if err != nil {
		return nil, nil, err
	}

	if _, err := c.items.PurgeExpired(ctx, time.Now().UTC()); err != nil {
		return nil, nil, apperrors.NewDatabaseError(err)
	}
	items, err := c.items.List(ctx, userID, "")
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError(err)
	}

	now := time.Now().UTC()
	session.Status = types.SyncStatusCompleted
	session.EndTime = &now
	session.Progress = types.SyncProgress{
		Total:      len(items),
		Completed:  len(items),
		Percentage: 100,
	}
	session.Stats.Downloaded = len(items)
	if err := c.sessions.Update(ctx, session); err != nil {
		return nil, nil, apperrors.NewDatabaseError(err)
	}
	return items, session, nil
}

// Status returns a session by ID.
func (c *SyncCoordinator) Status(ctx context.Context, sessionID string) (*types.SyncSession, error) {
	return c.getSession(ctx, sessionID)
}

// History lists a user's sync sessions, newest first.
func (c *SyncCoordinator) History(ctx context.Context, userID string) ([]*types.SyncSession, error) {
	sessions, err := c.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return sessions, nil
}

func (c *SyncCoordinator) getSession(ctx context.Context, sessionID string) (*types.SyncSession, error) {
	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Sync session", sessionID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return session, nil
}

func (c *SyncCoordinator) forgetSession(sessionID string) {
	c.mu.Lock()
	delete(c.conflicted, sessionID)
	c.mu.Unlock()
}
