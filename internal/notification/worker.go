package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studio-booking-backend/internal/model"
)

// queuePerWorker sizes the job buffer relative to the number of workers.
const queuePerWorker = 64

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool sends session-change notices to the push subscriptions that
// follow a session. Jobs are only handed in after the change has committed.
type WorkerPool struct {
	size    int
	jobs    chan uuid.UUID
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *slog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan uuid.UUID, size*queuePerWorker),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger.With("component", "notification"),
	}
}

// SetSender replaces the push transport.
func (wp *WorkerPool) SetSender(s NotificationSender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("Worker started", "worker", id)
	for {
		select {
		case sessionID := <-wp.jobs:
			wp.logger.Debug("Worker processing session", "worker", id, "session_id", sessionID)
			wp.sendNotificationsForSession(ctx, sessionID)
		case <-ctx.Done():
			wp.logger.Debug("Worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a notice for sessionID without blocking. It reports false
// when the queue is full and the notice was dropped.
func (wp *WorkerPool) Dispatch(sessionID uuid.UUID) bool {
	select {
	case wp.jobs <- sessionID:
		return true
	default:
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan uuid.UUID {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForSession(ctx context.Context, sessionID uuid.UUID) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_session_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.class_session_id = ?", sessionID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error("Fetching subscriptions failed", "session_id", sessionID, "error", err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("Sending session change notices", "session_id", sessionID, "count", len(subscriptions))

	message := "A class you follow has changed. Check the new schedule."
	var session model.ClassSession
	if err := wp.db.WithContext(ctx).
		Select("name", "starts_at").
		Take(&session, "id = ?", sessionID).Error; err != nil {
		wp.logger.Warn("Fetching session failed", "session_id", sessionID, "error", err)
	} else if session.Name != "" {
		message = fmt.Sprintf("%s on %s UTC has changed. Check the new schedule.",
			session.Name, session.StartsAt.UTC().Format("Mon 2 Jan 15:04"))
	}

	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("Sending notification failed", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Expired subscription.
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("Subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Select(clause.Associations).Delete(&sub).Error; err != nil {
			wp.logger.Error("Deleting expired subscription failed", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
