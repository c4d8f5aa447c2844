package router

import (
	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/config"
	"github.com/marketloop/mobile-backend/handlers"
	"github.com/marketloop/mobile-backend/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies holds everything required to set up routes.
type Dependencies struct {
	Config              *config.Config
	HealthHandler       *handlers.HealthHandler
	DeviceHandler       *handlers.DeviceHandler
	NotificationHandler *handlers.NotificationHandler
	OfflineHandler      *handlers.OfflineHandler
	SyncHandler         *handlers.SyncHandler
	LocationHandler     *handlers.LocationHandler
	TelemetryHandler    *handlers.TelemetryHandler
	AppConfigHandler    *handlers.AppConfigHandler
	Logger              *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and metrics routes do not require identity.
	r.GET("/health", deps.HealthHandler.ReadinessCheck)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Everything below expects the gateway-provided identity header.
	mobile := v1.Group("/mobile")
	mobile.Use(middleware.Identity())
	{
		deviceRoutes := mobile.Group("/devices")
		{
			deviceRoutes.POST("/register", deps.DeviceHandler.Register)
			deviceRoutes.GET("", deps.DeviceHandler.List)
			deviceRoutes.GET("/:deviceId", deps.DeviceHandler.Get)
			deviceRoutes.PUT("/:deviceId", deps.DeviceHandler.Update)
			deviceRoutes.PUT("/:deviceId/preferences", deps.DeviceHandler.UpdatePreferences)
			deviceRoutes.DELETE("/:deviceId", deps.DeviceHandler.Delete)
		}

		notificationRoutes := mobile.Group("/notifications")
		{
			notificationRoutes.POST("/send", deps.NotificationHandler.Send)
			notificationRoutes.POST("/bulk", deps.NotificationHandler.SendBulk)
			notificationRoutes.POST("/schedule", deps.NotificationHandler.Schedule)
			notificationRoutes.GET("/history", deps.NotificationHandler.History)
			notificationRoutes.GET("/analytics", deps.NotificationHandler.Analytics)
			notificationRoutes.DELETE("/:id", deps.NotificationHandler.Cancel)
			notificationRoutes.PUT("/:id/read", deps.NotificationHandler.MarkRead)
			notificationRoutes.PUT("/:id/engagement", deps.NotificationHandler.TrackEngagement)
		}

		offlineRoutes := mobile.Group("/offline")
		{
			offlineRoutes.POST("/store", deps.OfflineHandler.Store)
			offlineRoutes.GET("/data", deps.OfflineHandler.List)
			offlineRoutes.GET("/data/:id", deps.OfflineHandler.Get)
			offlineRoutes.PUT("/data/:id", deps.OfflineHandler.Update)
			offlineRoutes.DELETE("/data/:id", deps.OfflineHandler.Delete)
			offlineRoutes.GET("/usage", deps.OfflineHandler.Usage)

			offlineRoutes.POST("/sync", deps.SyncHandler.Sync)
			offlineRoutes.GET("/sync/status", deps.SyncHandler.Status)
			offlineRoutes.POST("/sync/full", deps.SyncHandler.FullSync)
			offlineRoutes.PUT("/sync/:syncId/:action", deps.SyncHandler.Control)
		}

		locationRoutes := mobile.Group("/location")
		{
			locationRoutes.POST("/:userId", deps.LocationHandler.UpdateLocation)
			locationRoutes.GET("/last", deps.LocationHandler.LastKnown)
		}

		geofenceRoutes := mobile.Group("/geofences")
		{
			geofenceRoutes.POST("", deps.LocationHandler.CreateGeofence)
			geofenceRoutes.GET("", deps.LocationHandler.ListGeofences)
			geofenceRoutes.GET("/events", deps.LocationHandler.Events)
		}

		configRoutes := mobile.Group("/config")
		{
			configRoutes.GET("", deps.AppConfigHandler.Get)
			configRoutes.PUT("/:configId", deps.AppConfigHandler.Update)
		}

		sessionRoutes := mobile.Group("/sessions")
		{
			sessionRoutes.POST("/start", deps.TelemetryHandler.StartSession)
			sessionRoutes.PUT("/:sessionId/activity", deps.TelemetryHandler.TrackActivity)
			sessionRoutes.PUT("/:sessionId/end", deps.TelemetryHandler.EndSession)
			sessionRoutes.GET("/analytics", deps.TelemetryHandler.SessionAnalytics)
		}

		crashRoutes := mobile.Group("/crashes")
		{
			crashRoutes.POST("/report", deps.TelemetryHandler.ReportCrash)
			crashRoutes.GET("", deps.TelemetryHandler.Crashes)
		}

		performanceRoutes := mobile.Group("/performance")
		{
			performanceRoutes.POST("/report", deps.TelemetryHandler.ReportPerformance)
			performanceRoutes.GET("", deps.TelemetryHandler.Performance)
		}
	}

	return r
}
