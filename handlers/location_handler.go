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

// LocationHandler handles location updates and geofence management.
type LocationHandler struct {
	geofences *services.GeofenceService
	logger    *zap.SugaredLogger
}

func NewLocationHandler(geofences *services.GeofenceService) *LocationHandler {
	return &LocationHandler{
		geofences: geofences,
		logger:    logger.GetLogger().Named("location-handler"),
	}
}

// UpdateLocation evaluates one location update against all geofences and
// returns the events it produced.
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	var update types.LocationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}

	userID := c.Param("userId")
	if userID == "" {
		userID = middleware.UserID(c)
	}
	events, err := h.geofences.ProcessLocation(c.Request.Context(), userID, &update)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// CreateGeofence registers a new circular region.
func (h *LocationHandler) CreateGeofence(c *gin.Context) {
	var req types.CreateGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	g, err := h.geofences.CreateGeofence(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// ListGeofences returns all registered geofences.
func (h *LocationHandler) ListGeofences(c *gin.Context) {
	fences, err := h.geofences.ListGeofences(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"geofences": fences, "count": len(fences)})
}

// Events returns the caller's geofence event history.
func (h *LocationHandler) Events(c *gin.Context) {
	events, err := h.geofences.Events(c.Request.Context(), middleware.UserID(c),
		queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// LastKnown returns the caller's most recent stored position.
func (h *LocationHandler) LastKnown(c *gin.Context) {
	loc, err := h.geofences.LastKnownLocation(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}
