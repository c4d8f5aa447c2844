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

// DeviceHandler handles device registry requests.
type DeviceHandler struct {
	devices *services.DeviceService
	logger  *zap.SugaredLogger
}

func NewDeviceHandler(devices *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		devices: devices,
		logger:  logger.GetLogger().Named("device-handler"),
	}
}

// Register creates or refreshes a device registration for the caller.
func (h *DeviceHandler) Register(c *gin.Context) {
	var reg types.DeviceRegistration
	if err := c.ShouldBindJSON(&reg); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	reg.UserID = middleware.UserID(c)

	stored, err := h.devices.Register(c.Request.Context(), &reg)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

// Get returns one device registration.
func (h *DeviceHandler) Get(c *gin.Context) {
	reg, err := h.devices.Get(c.Request.Context(), c.Param("deviceId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// List returns the caller's registered devices.
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.devices.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}

// Update applies a partial update to a registration.
func (h *DeviceHandler) Update(c *gin.Context) {
	var update types.DeviceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	reg, err := h.devices.Update(c.Request.Context(), c.Param("deviceId"), &update)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// UpdatePreferences replaces a device's notification preferences.
func (h *DeviceHandler) UpdatePreferences(c *gin.Context) {
	var prefs types.DevicePreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	reg, err := h.devices.UpdatePreferences(c.Request.Context(), c.Param("deviceId"), &prefs)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// Delete unregisters a device.
func (h *DeviceHandler) Delete(c *gin.Context) {
	if err := h.devices.Delete(c.Request.Context(), c.Param("deviceId")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
