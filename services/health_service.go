package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	healthUp   = "up"
	healthDown = "down"
)

// HealthService reports readiness of the backing stores.
type HealthService struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	version     string
	log         *zap.SugaredLogger
}

func NewHealthService(dbPool *pgxpool.Pool, redisClient *redis.Client, version string) *HealthService {
	return &HealthService{
		dbPool:      dbPool,
		redisClient: redisClient,
		version:     version,
		log:         logger.GetLogger().Named("health"),
	}
}

// CheckHealth pings each backing store. Overall status is down when any
// component is down.
func (h *HealthService) CheckHealth(ctx context.Context) types.HealthResponse {
	components := make(map[string]string)
	status := healthUp

	components["database"] = healthUp
	if h.dbPool != nil {
		if err := h.dbPool.Ping(ctx); err != nil {
			h.log.Errorw("Database health check failed", "error", err)
			components["database"] = healthDown
			status = healthDown
		}
	}

	components["redis"] = healthUp
	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			h.log.Errorw("Redis health check failed", "error", err)
			components["redis"] = healthDown
			status = healthDown
		}
	}

	return types.HealthResponse{
		Status:     status,
		Version:    h.version,
		Components: components,
	}
}
