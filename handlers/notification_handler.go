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

// NotificationHandler handles push notification requests.
type NotificationHandler struct {
	dispatcher *services.DispatchService
	logger     *zap.SugaredLogger
}

func NewNotificationHandler(dispatcher *services.DispatchService) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
		logger:     logger.GetLogger().Named("notification-handler"),
	}
}

// Send creates and dispatches a notification, or persists it for the
// scheduler when the schedule lies in the future.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req types.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	n, err := h.dispatcher.Send(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// SendBulk dispatches multiple independent notifications and reports
// per-notification outcomes.
func (h *NotificationHandler) SendBulk(c *gin.Context) {
	var req types.BulkNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if len(req.Notifications) == 0 {
		handleError(c, errors.ValidationFailed("Invalid request body", "notifications is required"))
		return
	}

	sent, errs := h.dispatcher.SendBulk(c.Request.Context(), req.Notifications)
	results := make([]gin.H, len(sent))
	for i := range sent {
		if errs[i] != nil {
			results[i] = gin.H{"error": errs[i].Error()}
			continue
		}
		results[i] = gin.H{"notification": sent[i]}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Schedule persists a notification for a future send. The schedule section
// is mandatory on this endpoint.
func (h *NotificationHandler) Schedule(c *gin.Context) {
	var req types.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if req.Scheduled == nil || req.Scheduled.SendAt.IsZero() {
		handleError(c, errors.ValidationFailed("Invalid schedule", "scheduled.sendAt is required"))
		return
	}
	n, err := h.dispatcher.Send(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Cancel removes a notification that has not started sending.
func (h *NotificationHandler) Cancel(c *gin.Context) {
	if err := h.dispatcher.CancelScheduled(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History lists the caller's past notifications.
func (h *NotificationHandler) History(c *gin.Context) {
	history, err := h.dispatcher.History(c.Request.Context(),
		middleware.UserID(c), c.Query("deviceId"), queryInt(c, "limit", 50))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": history, "count": len(history)})
}

// MarkRead records an opened engagement for a notification.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.dispatcher.TrackEngagement(c.Request.Context(), c.Param("id"), "opened"); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TrackEngagement folds a client-reported engagement event into the
// notification's counters.
func (h *NotificationHandler) TrackEngagement(c *gin.Context) {
	var req struct {
		Event string `json:"event" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if err := h.dispatcher.TrackEngagement(c.Request.Context(), c.Param("id"), req.Event); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analytics returns the cross-notification delivery rollup for the caller.
func (h *NotificationHandler) Analytics(c *gin.Context) {
	summary, err := h.dispatcher.Analytics(c.Request.Context(),
		middleware.UserID(c), queryInt(c, "limit", 200))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
