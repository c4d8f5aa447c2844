package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/middleware"
	"github.com/marketloop/mobile-backend/services"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// SyncHandler handles batch reconciliation of offline data.
type SyncHandler struct {
	coordinator *services.SyncCoordinator
	logger      *zap.SugaredLogger
}

func NewSyncHandler(coordinator *services.SyncCoordinator) *SyncHandler {
	return &SyncHandler{
		coordinator: coordinator,
		logger:      logger.GetLogger().Named("sync-handler"),
	}
}

type syncBatchRequest struct {
	SessionID string             `json:"sessionId,omitempty"`
	Type      types.SyncType     `json:"type,omitempty"`
	Changes   []types.SyncChange `json:"changes" binding:"required"`
}

// Sync applies one batch of changes. Without a session ID a new incremental
// session is opened and returned alongside the result; subsequent batches
// pass it back to accumulate progress and stats.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req syncBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}

	ctx := c.Request.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		session, err := h.coordinator.Start(ctx, middleware.UserID(c), req.Type)
		if err != nil {
			handleError(c, err)
			return
		}
		sessionID = session.ID
	}

	result, err := h.coordinator.ProcessBatch(ctx, sessionID, req.Changes)
	if err != nil {
		handleError(c, err)
		return
	}
	session, err := h.coordinator.Status(ctx, sessionID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "result": result})
}

// FullSync purges expired items and returns the caller's complete dataset.
func (h *SyncHandler) FullSync(c *gin.Context) {
	items, session, err := h.coordinator.FullSync(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "items": items, "count": len(items)})
}

// Status returns one session by ID, or the caller's session history when no
// ID is given.
func (h *SyncHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	if sessionID := c.Query("sessionId"); sessionID != "" {
		session, err := h.coordinator.Status(ctx, sessionID)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
		return
	}

	sessions, err := h.coordinator.History(ctx, middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// Control applies a pause, resume, cancel or complete transition.
func (h *SyncHandler) Control(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("syncId")

	action := c.Param("action")
	if action == "complete" {
		session, err := h.coordinator.Complete(ctx, sessionID)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
		return
	}

	session, err := h.coordinator.Control(ctx, sessionID, types.SyncControlAction(action))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
