package services

import (
	"context"
	"sync"
	"time"

	"github.com/marketloop/mobile-backend/config"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schedulerClaimPrefix = "scheduler_claim:"

// Scheduler scans for due scheduled notifications and hands them to the
// dispatcher. Claims are double-gated: a Redis SetNX lock keeps replicas
// from scanning the same notification simultaneously, and the status CAS in
// Dispatch makes a duplicate claim a no-op. Deliveries survive restarts
// through the ledger, never by replaying completed devices.
type Scheduler struct {
	notifications store.NotificationStore
	dispatcher    *DispatchService
	redisClient   *redis.Client
	cfg           config.DispatchConfig
	logger        *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(
	notifications store.NotificationStore,
	dispatcher *DispatchService,
	redisClient *redis.Client,
	cfg config.DispatchConfig,
) *Scheduler {
	return &Scheduler{
		notifications: notifications,
		dispatcher:    dispatcher,
		redisClient:   redisClient,
		cfg:           cfg,
		logger:        logger.GetLogger().Named("scheduler"),
	}
}

// Start launches the background scan loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Warn("Scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	interval := time.Duration(s.cfg.SchedulerIntervalSeconds) * time.Second
	s.logger.Infow("Starting notification scheduler", "interval", interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop halts the scan loop and waits for the in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Notification scheduler stopped")
}

// runOnce dispatches every due notification this replica manages to claim.
func (s *Scheduler) runOnce(ctx context.Context) {
	due, err := s.notifications.ListDue(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Errorw("Failed to list due notifications", "error", err)
		return
	}
	for _, n := range due {
		if ctx.Err() != nil {
			return
		}
		if !s.claim(ctx, n.ID) {
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, n.ID, types.StatusScheduled); err != nil {
			// Inconsistencies are surfaced loudly, not silently dropped.
			appErr := apperrors.SchedulerInconsistency(n.ID, err)
			s.logger.Errorw("Scheduled dispatch failed",
				"notificationID", n.ID, "error", appErr)
		}
		s.release(ctx, n.ID)
	}
}

// claim takes the short-lived Redis lock for one notification. Losing the
// race is normal in a multi-replica deployment.
func (s *Scheduler) claim(ctx context.Context, id string) bool {
	if s.redisClient == nil {
		return true
	}
	ttl := 2 * time.Duration(s.cfg.SchedulerIntervalSeconds) * time.Second
	ok, err := s.redisClient.SetNX(ctx, schedulerClaimPrefix+id, "1", ttl).Result()
	if err != nil {
		s.logger.Warnw("Scheduler claim failed, falling back to status CAS",
			"notificationID", id, "error", err)
		return true
	}
	return ok
}

func (s *Scheduler) release(ctx context.Context, id string) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, schedulerClaimPrefix+id).Err(); err != nil {
		s.logger.Debugw("Failed to release scheduler claim",
			"notificationID", id, "error", err)
	}
}
