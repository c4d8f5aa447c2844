package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/middleware"
	"github.com/marketloop/mobile-backend/services"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// TelemetryHandler handles session, crash and performance ingestion plus
// their read-side rollups.
type TelemetryHandler struct {
	telemetry *services.TelemetryService
	logger    *zap.SugaredLogger
}

func NewTelemetryHandler(telemetry *services.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{
		telemetry: telemetry,
		logger:    logger.GetLogger().Named("telemetry-handler"),
	}
}

// StartSession records the beginning of an app session.
func (h *TelemetryHandler) StartSession(c *gin.Context) {
	var sess types.AppSession
	if err := c.ShouldBindJSON(&sess); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	sess.UserID = middleware.UserID(c)

	stored, err := h.telemetry.RecordSession(c.Request.Context(), &sess)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// TrackActivity appends one activity to an open session.
func (h *TelemetryHandler) TrackActivity(c *gin.Context) {
	var activity types.SessionActivity
	if err := c.ShouldBindJSON(&activity); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	sess, err := h.telemetry.TrackActivity(c.Request.Context(), c.Param("sessionId"), activity)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// EndSession closes a session and folds in any final activities.
func (h *TelemetryHandler) EndSession(c *gin.Context) {
	var req struct {
		EndTime    time.Time               `json:"endTime"`
		Activities []types.SessionActivity `json:"activities,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if req.EndTime.IsZero() {
		req.EndTime = time.Now()
	}
	sess, err := h.telemetry.CompleteSession(c.Request.Context(), c.Param("sessionId"), req.EndTime, req.Activities)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// SessionAnalytics returns the session rollup for the caller's account.
func (h *TelemetryHandler) SessionAnalytics(c *gin.Context) {
	analytics, err := h.telemetry.SessionAnalytics(c.Request.Context(),
		middleware.UserID(c), queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// ReportCrash stores a crash report.
func (h *TelemetryHandler) ReportCrash(c *gin.Context) {
	var crash types.CrashReport
	if err := c.ShouldBindJSON(&crash); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	crash.UserID = middleware.UserID(c)

	stored, err := h.telemetry.RecordCrash(c.Request.Context(), &crash)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// Crashes lists crash reports for a device.
func (h *TelemetryHandler) Crashes(c *gin.Context) {
	reports, err := h.telemetry.CrashReports(c.Request.Context(),
		c.Query("deviceId"), queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"crashes": reports, "count": len(reports)})
}

// ReportPerformance stores a performance sample.
func (h *TelemetryHandler) ReportPerformance(c *gin.Context) {
	var report types.PerformanceReport
	if err := c.ShouldBindJSON(&report); err != nil {
		handleError(c, errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	stored, err := h.telemetry.RecordPerformance(c.Request.Context(), &report)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// Performance returns the averaged performance rollup for a device.
func (h *TelemetryHandler) Performance(c *gin.Context) {
	metrics, err := h.telemetry.PerformanceMetrics(c.Request.Context(),
		c.Query("deviceId"), queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}
