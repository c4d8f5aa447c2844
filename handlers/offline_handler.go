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

// OfflineHandler handles direct offline data access. Batch reconciliation
// goes through SyncHandler.
type OfflineHandler struct {
	offline *services.OfflineService
	logger  *zap.SugaredLogger
}

func NewOfflineHandler(offline *services.OfflineService) *OfflineHandler {
	return &OfflineHandler{
		offline: offline,
		logger:  logger.GetLogger().Named("offline-handler"),
	}
}

// Store creates a new offline item at version 1.
func (h *OfflineHandler) Store(c *gin.Context) {
	var req types.StoreOfflineDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	item, err := h.offline.Store(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// List returns the caller's offline items, optionally filtered by type.
func (h *OfflineHandler) List(c *gin.Context) {
	items, err := h.offline.List(c.Request.Context(), middleware.UserID(c),
		types.OfflineDataType(c.Query("type")))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Get returns one offline item.
func (h *OfflineHandler) Get(c *gin.Context) {
	item, err := h.offline.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Update commits new data against the caller's last-known version. On a
// version conflict the response carries the current server state so the
// client can resolve and resubmit.
func (h *OfflineHandler) Update(c *gin.Context) {
	var req types.UpdateOfflineDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	item, err := h.offline.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.IsType(err, errors.ConflictError) && item != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "version_conflict",
				"server": item,
			})
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete removes an offline item. force=true severs dependency edges from
// dependents instead of rejecting the delete.
func (h *OfflineHandler) Delete(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.offline.Delete(c.Request.Context(), c.Param("id"), force); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Usage summarizes the caller's offline footprint.
func (h *OfflineHandler) Usage(c *gin.Context) {
	byType, totalBytes, err := h.offline.Usage(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"byType": byType, "totalBytes": totalBytes})
}
