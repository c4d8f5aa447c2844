package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/services"
	"github.com/marketloop/mobile-backend/types"
)

// AppConfigHandler serves the remote app configuration.
type AppConfigHandler struct {
	configs *services.AppConfigService
}

func NewAppConfigHandler(configs *services.AppConfigService) *AppConfigHandler {
	return &AppConfigHandler{configs: configs}
}

// Get returns the config for the caller's platform, preferring a record
// pinned to the reported app version.
func (h *AppConfigHandler) Get(c *gin.Context) {
	platform := c.Query("platform")
	if platform == "" {
		handleError(c, errors.ValidationFailed("Invalid request", "platform is required"))
		return
	}
	cfg, err := h.configs.GetConfig(c.Request.Context(),
		types.Platform(platform), c.Query("version"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Update applies a partial edit to one config record.
func (h *AppConfigHandler) Update(c *gin.Context) {
	var update types.AppConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	cfg, err := h.configs.UpdateConfig(c.Request.Context(), c.Param("configId"), &update)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
