package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/mobile-backend/config"
	"github.com/marketloop/mobile-backend/handlers"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/router"
	"github.com/marketloop/mobile-backend/services"
	"github.com/marketloop/mobile-backend/store/postgres"
	redisstore "github.com/marketloop/mobile-backend/store/redis"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := postgres.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("Failed to parse database config: %v", err)
	}
	if cfg.IsProduction() {
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			ServerName: cfg.Database.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisOptions := &redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.UseTLS {
		redisOptions.TLSConfig = &tls.Config{
			ServerName: cfg.Redis.Address,
			MinVersion: tls.VersionTLS12,
		}
	}
	redisClient := redis.NewClient(redisOptions)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warnw("Failed to close redis client", "error", err)
		}
	}()

	// Stores
	deviceStore := postgres.NewDeviceStore(pool)
	notificationStore := postgres.NewNotificationStore(pool)
	offlineStore := postgres.NewOfflineStore(pool)
	syncStore := postgres.NewSyncSessionStore(pool)
	geofenceStore := postgres.NewGeofenceStore(pool)
	telemetryStore := postgres.NewTelemetryStore(pool)
	appConfigStore := postgres.NewAppConfigStore(pool)
	locationStore := redisstore.NewLocationStore(redisClient,
		time.Duration(cfg.Geofence.LocationTTLHours)*time.Hour)

	// Services
	workerPool := services.NewWorkerPool(cfg.WorkerPool)
	workerPool.Start()

	transport := services.NewHTTPPushTransport(cfg.Dispatch.ProviderURL,
		time.Duration(cfg.Dispatch.TransportTimeoutSeconds)*time.Second)
	segments := services.NewHTTPSegmentDirectory(cfg.Dispatch.SegmentDirectoryURL,
		time.Duration(cfg.Dispatch.LookupTimeoutSeconds)*time.Second)

	resolver := services.NewTargetingResolver(deviceStore, locationStore, segments)
	dispatchService := services.NewDispatchService(notificationStore, resolver, transport, workerPool, cfg.Dispatch)
	scheduler := services.NewScheduler(notificationStore, dispatchService, redisClient, cfg.Dispatch)
	scheduler.Start()

	deviceService := services.NewDeviceService(deviceStore)
	offlineService := services.NewOfflineService(offlineStore)
	syncCoordinator := services.NewSyncCoordinator(offlineStore, syncStore, cfg.Sync)
	geofenceService := services.NewGeofenceService(geofenceStore, locationStore, dispatchService, cfg.Geofence)
	telemetryService := services.NewTelemetryService(telemetryStore, deviceStore)
	appConfigService := services.NewAppConfigService(appConfigStore)
	healthService := services.NewHealthService(pool, redisClient, cfg.Server.Version)

	deps := router.Dependencies{
		Config:              cfg,
		HealthHandler:       handlers.NewHealthHandler(healthService),
		DeviceHandler:       handlers.NewDeviceHandler(deviceService),
		NotificationHandler: handlers.NewNotificationHandler(dispatchService),
		OfflineHandler:      handlers.NewOfflineHandler(offlineService),
		SyncHandler:         handlers.NewSyncHandler(syncCoordinator),
		LocationHandler:     handlers.NewLocationHandler(geofenceService),
		TelemetryHandler:    handlers.NewTelemetryHandler(telemetryService),
		AppConfigHandler:    handlers.NewAppConfigHandler(appConfigService),
		Logger:              log,
	}
	r := router.SetupRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("Server starting", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.WorkerPool.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	scheduler.Stop()
	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Worker pool shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}
