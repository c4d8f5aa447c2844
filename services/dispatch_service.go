package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/mobile-backend/config"
	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"go.uber.org/zap"
)

// DispatchService moves notifications through the delivery pipeline:
// targeting resolution, quiet-hours deferral, per-device fan-out through the
// worker pool, retries, the delivery ledger and analytics counters.
type DispatchService struct {
	notifications store.NotificationStore
	resolver      *TargetingResolver
	transport     PushTransport
	pool          *WorkerPool
	cfg           config.DispatchConfig
	logger        *zap.SugaredLogger
}

func NewDispatchService(
	notifications store.NotificationStore,
	resolver *TargetingResolver,
	transport PushTransport,
	pool *WorkerPool,
	cfg config.DispatchConfig,
) *DispatchService {
	return &DispatchService{
		notifications: notifications,
		resolver:      resolver,
		transport:     transport,
		pool:          pool,
		cfg:           cfg,
		logger:        logger.GetLogger().Named("dispatch-service"),
	}
}

// Send creates a notification and either dispatches it immediately or, when
// the schedule lies in the future, persists it for the scheduler to claim.
func (s *DispatchService) Send(ctx context.Context, req *types.SendNotificationRequest) (*types.PushNotification, error) {
	n, err := s.buildNotification(req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if n.Scheduled != nil && n.Scheduled.SendAt.After(now) {
		n.Status = types.StatusScheduled
		if err := s.notifications.Create(ctx, n); err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		s.logger.Infow("Notification scheduled",
			"notificationID", n.ID, "sendAt", n.Scheduled.SendAt)
		return n, nil
	}

	n.Status = types.StatusDraft
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if err := s.Dispatch(ctx, n.ID, types.StatusDraft); err != nil {
		return nil, err
	}
	return s.GetNotification(ctx, n.ID)
}

// SendBulk dispatches multiple independent notifications. One failure never
// blocks the rest; per-notification errors come back alongside successes.
func (s *DispatchService) SendBulk(ctx context.Context, reqs []types.SendNotificationRequest) ([]*types.PushNotification, []error) {
	out := make([]*types.PushNotification, len(reqs))
	errs := make([]error, len(reqs))
	for i := range reqs {
		out[i], errs[i] = s.Send(ctx, &reqs[i])
	}
	return out, errs
}

// Dispatch claims the notification via a status CAS and runs delivery. A
// claim that no longer matches means another worker already owns it; that
// is a no-op, which keeps scheduler retries idempotent.
func (s *DispatchService) Dispatch(ctx context.Context, id string, from types.NotificationStatus) error {
	claimed, err := s.notifications.TransitionStatus(ctx, id, from, types.StatusSending)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Notification", id)
		}
		return apperrors.NewDatabaseError(err)
	}
	if !claimed {
		s.logger.Debugw("Notification already claimed", "notificationID", id)
		return nil
	}

	n, err := s.GetNotification(ctx, id)
	if err != nil {
		return err
	}

	targets, lookupFailures, err := s.resolver.Resolve(ctx, n)
	if err != nil {
		s.markFailed(ctx, n, "targeting_failed", err.Error())
		return err
	}
	// Criteria that could not be consulted shrink the audience; surface each
	// one in the notification's error list so the shrinkage is visible.
	for _, lf := range lookupFailures {
		if err := s.notifications.RecordErrorCode(ctx, n.ID, lf.Code, lf.Message); err != nil {
			s.logger.Warnw("Failed to record targeting lookup failure",
				"notificationID", n.ID, "error", err)
		}
	}

	// The delivery ledger makes restarts and quiet-hours redispatch safe:
	// devices with a recorded outcome are never attempted again.
	delivered := make(map[string]struct{})
	records, err := s.notifications.ListDeliveries(ctx, n.ID)
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	for _, rec := range records {
		delivered[rec.DeviceID] = struct{}{}
	}

	now := time.Now().UTC()
	var pending []*types.DeviceRegistration
	var earliestRetry time.Time
	for _, d := range targets {
		if _, done := delivered[d.DeviceID]; done {
			continue
		}
		// Urgent notifications ignore quiet hours.
		if n.Priority != types.PriorityUrgent {
			if until, deferred := quietHoursDeferral(d, now); deferred {
				if earliestRetry.IsZero() || until.Before(earliestRetry) {
					earliestRetry = until
				}
				s.logger.Debugw("Delivery deferred by quiet hours",
					"notificationID", n.ID, "deviceID", d.DeviceID, "until", until)
				continue
			}
		}
		pending = append(pending, d)
	}

	if len(pending) == 0 && earliestRetry.IsZero() {
		// Nothing to attempt at all: empty targeting resolves to sent.
		s.markSent(ctx, n)
		return nil
	}

	var wg sync.WaitGroup
	for _, device := range pending {
		wg.Add(1)
		d := device
		job := Job{
			Name: fmt.Sprintf("deliver:%s:%s", n.ID, d.DeviceID),
			Execute: func(jobCtx context.Context) error {
				defer wg.Done()
				return s.deliverToDevice(jobCtx, n, d)
			},
		}
		if !s.pool.Submit(job) {
			// Queue full; wait for capacity so fan-out stays bounded by the
			// pool instead of spilling into extra goroutines.
			if !s.pool.SubmitWait(ctx, job) {
				wg.Done()
				s.logger.Errorw("Delivery job abandoned during shutdown",
					"notificationID", n.ID, "deviceID", d.DeviceID)
			}
		}
	}
	wg.Wait()

	if !earliestRetry.IsZero() {
		// Some devices sit in quiet hours. Hand the notification back to
		// the scheduler for the remainder; the ledger shields devices
		// that already got their outcome.
		n.Scheduled = &types.NotificationSchedule{SendAt: earliestRetry}
		n.Status = types.StatusScheduled
		if err := s.notifications.Update(ctx, n); err != nil {
			return apperrors.NewDatabaseError(err)
		}
		s.logger.Infow("Notification rescheduled after quiet-hours deferral",
			"notificationID", n.ID, "sendAt", earliestRetry, "deferredDevices", len(targets)-len(pending))
		return nil
	}

	s.finalize(ctx, n)
	return nil
}

// deliverToDevice attempts delivery to one device with bounded retries and
// records the terminal outcome in the ledger.
func (s *DispatchService) deliverToDevice(ctx context.Context, n *types.PushNotification, d *types.DeviceRegistration) error {
	msg := PushMessage{
		Token:    d.DeviceToken,
		Title:    n.Title,
		Body:     n.Body,
		Data:     n.Data,
		ImageURL: n.ImageURL,
		Priority: string(n.Priority),
		Sound:    "default",
	}

	if err := s.notifications.IncrementCounter(ctx, n.ID, store.CounterSent, 1); err != nil {
		s.logger.Warnw("Failed to bump sent counter", "notificationID", n.ID, "error", err)
	}

	var lastCode, lastMessage string
	attempts := 0
	for attempts < s.cfg.MaxAttempts {
		attempts++
		receipts, err := s.transport.Send(ctx, []PushMessage{msg})
		if err != nil {
			lastCode, lastMessage = "transport_error", err.Error()
			s.logger.Warnw("Transport call failed",
				"notificationID", n.ID,
				"deviceID", d.DeviceID,
				"attempt", attempts,
				"error", err)
		} else if len(receipts) == 0 {
			lastCode, lastMessage = "missing_ticket", "provider returned no receipt"
		} else {
			receipt := receipts[0]
			if receipt.OK {
				rec := &types.DeliveryRecord{
					NotificationID: n.ID,
					DeviceID:       d.DeviceID,
					Outcome:        types.DeliveryDelivered,
					Attempts:       attempts,
					CompletedAt:    time.Now().UTC(),
				}
				if err := s.notifications.RecordDelivery(ctx, rec); err != nil {
					return apperrors.NewDatabaseError(err)
				}
				if err := s.notifications.IncrementCounter(ctx, n.ID, store.CounterDelivered, 1); err != nil {
					s.logger.Warnw("Failed to bump delivered counter", "notificationID", n.ID, "error", err)
				}
				return nil
			}
			lastCode, lastMessage = receipt.ErrorCode, receipt.Message
			if !receipt.Transient() {
				break
			}
		}
		if attempts < s.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				attempts = s.cfg.MaxAttempts
			case <-time.After(s.cfg.RetryBackoff() * time.Duration(attempts)):
			}
		}
	}

	rec := &types.DeliveryRecord{
		NotificationID: n.ID,
		DeviceID:       d.DeviceID,
		Outcome:        types.DeliveryFailed,
		ErrorCode:      lastCode,
		Attempts:       attempts,
		CompletedAt:    time.Now().UTC(),
	}
	if err := s.notifications.RecordDelivery(ctx, rec); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if err := s.notifications.RecordErrorCode(ctx, n.ID, lastCode, lastMessage); err != nil {
		s.logger.Warnw("Failed to record error code", "notificationID", n.ID, "error", err)
	}
	s.logger.Warnw("Delivery failed",
		"notificationID", n.ID,
		"deviceID", d.DeviceID,
		"errorCode", lastCode,
		"attempts", attempts)
	return nil
}

// finalize moves a fully-attempted notification to its terminal status.
// Per-device rejections live in the delivery ledger and analytics errors;
// a batch that was actually run ends sent regardless of outcomes. Failed is
// reserved for batches the dispatcher could not run, which at this point
// means the transport was unreachable for every single attempt.
func (s *DispatchService) finalize(ctx context.Context, n *types.PushNotification) {
	records, err := s.notifications.ListDeliveries(ctx, n.ID)
	if err != nil {
		s.logger.Errorw("Failed to read delivery ledger during finalize",
			"notificationID", n.ID, "error", err)
		return
	}
	transportDown := len(records) > 0
	for _, rec := range records {
		if rec.Outcome == types.DeliveryDelivered || rec.ErrorCode != "transport_error" {
			transportDown = false
			break
		}
	}
	if transportDown {
		s.markFailed(ctx, n, "transport_unavailable",
			fmt.Sprintf("transport unreachable for all %d deliveries", len(records)))
		return
	}
	s.markSent(ctx, n)
}

func (s *DispatchService) markSent(ctx context.Context, n *types.PushNotification) {
	now := time.Now().UTC()
	n.Status = types.StatusSent
	n.SentAt = &now
	if err := s.notifications.Update(ctx, n); err != nil {
		s.logger.Errorw("Failed to mark notification sent",
			"notificationID", n.ID, "error", err)
	}
}

func (s *DispatchService) markFailed(ctx context.Context, n *types.PushNotification, code, message string) {
	n.Status = types.StatusFailed
	if err := s.notifications.Update(ctx, n); err != nil {
		s.logger.Errorw("Failed to mark notification failed",
			"notificationID", n.ID, "error", err)
	}
	if err := s.notifications.RecordErrorCode(ctx, n.ID, code, message); err != nil {
		s.logger.Warnw("Failed to record failure code",
			"notificationID", n.ID, "error", err)
	}
}

// GetNotification returns one notification with its analytics.
func (s *DispatchService) GetNotification(ctx context.Context, id string) (*types.PushNotification, error) {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Notification", id)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return n, nil
}

// History lists past notifications filtered by user or device.
func (s *DispatchService) History(ctx context.Context, userID, deviceID string, limit int) ([]*types.PushNotification, error) {
	out, err := s.notifications.ListHistory(ctx, userID, deviceID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return out, nil
}

// CancelScheduled removes a notification that has not started sending.
func (s *DispatchService) CancelScheduled(ctx context.Context, id string) error {
	n, err := s.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != types.StatusScheduled && n.Status != types.StatusDraft {
		return apperrors.New(apperrors.ConflictError,
			fmt.Sprintf("Notification is already %s", n.Status), id)
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Notification", id)
		}
		return apperrors.NewDatabaseError(err)
	}
	s.logger.Infow("Scheduled notification cancelled", "notificationID", id)
	return nil
}

// TrackEngagement folds client-reported engagement events into the
// notification's counters.
func (s *DispatchService) TrackEngagement(ctx context.Context, id string, event string) error {
	var counter string
	switch event {
	case "opened":
		counter = store.CounterOpened
	case "clicked":
		counter = store.CounterClicked
	case "dismissed":
		counter = store.CounterDismissed
	default:
		return apperrors.ValidationFailed("Unknown engagement event", event)
	}
	if err := s.notifications.IncrementCounter(ctx, id, counter, 1); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Notification", id)
		}
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// Analytics aggregates delivery counters across a user's notification
// history into the cross-notification rollup.
func (s *DispatchService) Analytics(ctx context.Context, userID string, limit int) (*types.AnalyticsSummary, error) {
	history, err := s.notifications.ListHistory(ctx, userID, "", limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	summary := &types.AnalyticsSummary{
		ByPlatform:  make(map[string]int),
		ByType:      make(map[string]int),
		ByTimeOfDay: make([]types.AnalyticsHourBucket, 24),
	}
	for h := range summary.ByTimeOfDay {
		summary.ByTimeOfDay[h].Hour = h
	}
	for _, n := range history {
		summary.TotalSent += n.Analytics.SentCount
		summary.Delivered += n.Analytics.DeliveredCount
		summary.Opened += n.Analytics.OpenedCount
		summary.Clicked += n.Analytics.ClickedCount
		summary.Dismissed += n.Analytics.DismissedCount
		summary.ByType[string(n.Type)] += n.Analytics.SentCount
		if n.SentAt != nil {
			summary.ByTimeOfDay[n.SentAt.UTC().Hour()].Count += n.Analytics.SentCount
		}
	}
	if summary.TotalSent > 0 {
		summary.DeliveryRate = float64(summary.Delivered) / float64(summary.TotalSent)
	}
	if summary.Delivered > 0 {
		summary.OpenRate = float64(summary.Opened) / float64(summary.Delivered)
		summary.ClickRate = float64(summary.Clicked) / float64(summary.Delivered)
	}
	return summary, nil
}

func (s *DispatchService) buildNotification(req *types.SendNotificationRequest) (*types.PushNotification, error) {
	if !req.Type.Valid() {
		return nil, apperrors.ValidationFailed("Invalid notification type", string(req.Type))
	}
	if req.Title == "" || req.Body == "" {
		return nil, apperrors.ValidationFailed("Invalid notification", "title and body are required")
	}
	priority := req.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}

	return &types.PushNotification{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		DeviceID:      req.DeviceID,
		Type:          req.Type,
		Title:         req.Title,
		Body:          req.Body,
		Data:          req.Data,
		ImageURL:      req.ImageURL,
		ActionButtons: req.ActionButtons,
		Priority:      priority,
		Scheduled:     req.Scheduled,
		Targeting:     req.Targeting,
		Status:        types.StatusDraft,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
