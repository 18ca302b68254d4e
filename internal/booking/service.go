// Package booking composes the row lock, the conflict detector and the
// execution-mode selector into the capacity-safe mutations of class sessions.
//
// Every mutation follows the same order inside one transaction:
// lock, re-read, validate, write, commit. Rejections roll the transaction
// back, so no partial write is ever visible. Nothing here retries; a
// contended call is reported to the caller as such.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"studio-booking-backend/internal/lock"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/query"
	"studio-booking-backend/internal/schedule"
)

// Notifier is told about sessions whose schedule changed. It is only called
// after the transaction has committed and must not block.
type Notifier interface {
	Dispatch(sessionID uuid.UUID) bool
}

// Options configures a Service. Zero fields get defaults.
type Options struct {
	Locker   *lock.Locker
	Detector *schedule.Detector
	Selector *query.Selector
	Notifier Notifier
	Logger   *slog.Logger
}

// Service is the booking and swap orchestrator.
type Service struct {
	db       *gorm.DB
	locker   *lock.Locker
	detector *schedule.Detector
	selector *query.Selector
	notifier Notifier
	logger   *slog.Logger
}

// NewService wires a Service around db.
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:       db,
		locker:   opts.Locker,
		detector: opts.Detector,
		selector: opts.Selector,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
	if s.locker == nil {
		s.locker = lock.New(3 * time.Second)
	}
	if s.detector == nil {
		s.detector = schedule.NewDetector()
	}
	if s.selector == nil {
		budget := 1
		if sqlDB, err := db.DB(); err == nil {
			budget = query.BudgetFromStats(sqlDB.Stats())
		}
		s.selector = query.NewSelector(budget)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Selector exposes the execution-mode selector shared with read paths.
func (s *Service) Selector() *query.Selector {
	return s.selector
}

// RunBatchedReads fans out independent reads under the current execution mode.
func (s *Service) RunBatchedReads(ctx context.Context, queries ...query.Query[any]) ([]any, error) {
	return s.selector.RunBatchedReads(ctx, queries...)
}

// CreateBooking reserves one seat in sessionID for clientID.
//
// The confirmed count is recounted after the session row is locked; a
// caller's earlier view of free seats is never trusted.
func (s *Service) CreateBooking(ctx context.Context, sessionID, clientID uuid.UUID) (*model.Booking, error) {
	var booking *model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.locker.Acquire(tx, lock.SessionResource, sessionID); err != nil {
			return err
		}

		session, err := loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != model.SessionStatusScheduled {
			return fmt.Errorf("session %s is %s: %w", sessionID, session.Status, ErrNotFound)
		}
		if err := ensureExists(tx, &model.Client{}, clientID, "client"); err != nil {
			return err
		}

		var held int64
		if err := tx.Model(&model.Booking{}).
			Where("session_id = ? AND client_id = ? AND status = ?", sessionID, clientID, model.BookingStatusConfirmed).
			Count(&held).Error; err != nil {
			return fmt.Errorf("count client bookings: %w", lock.Classify(err))
		}
		if held > 0 {
			return fmt.Errorf("client %s in session %s: %w", clientID, sessionID, ErrAlreadyBooked)
		}

		confirmed, err := confirmedCount(tx, sessionID)
		if err != nil {
			return err
		}
		if confirmed >= int64(session.Capacity) {
			return fmt.Errorf("session %s has %d of %d seats taken: %w",
				sessionID, confirmed, session.Capacity, ErrCapacityExceeded)
		}

		b := &model.Booking{
			SessionID: sessionID,
			ClientID:  clientID,
			Status:    model.BookingStatusConfirmed,
		}
		if err := tx.Create(b).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("client %s in session %s: %w", clientID, sessionID, ErrAlreadyBooked)
			}
			return fmt.Errorf("insert booking: %w", lock.Classify(err))
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "create booking", lock.Classify(err),
			"session_id", sessionID, "client_id", clientID)
	}

	s.logger.InfoContext(ctx, "Booking committed",
		"booking_id", booking.ID, "session_id", sessionID, "client_id", clientID)
	return booking, nil
}

// CancelBooking moves a confirmed booking to cancelled, freeing its seat.
// Cancelling an already cancelled booking returns it unchanged.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	var booking model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The session id is immutable, so reading it before the lock is safe.
		var ref model.Booking
		if err := tx.Select("id", "session_id").Take(&ref, "id = ?", bookingID).Error; err != nil {
			return readErr(err, "booking", bookingID)
		}
		if err := s.locker.Acquire(tx, lock.SessionResource, ref.SessionID); err != nil {
			return err
		}

		if err := tx.Take(&booking, "id = ?", bookingID).Error; err != nil {
			return readErr(err, "booking", bookingID)
		}
		if booking.Status == model.BookingStatusCancelled {
			return nil
		}

		now := tx.NowFunc()
		if err := tx.Model(&booking).Updates(map[string]any{
			"status":       model.BookingStatusCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return fmt.Errorf("cancel booking: %w", lock.Classify(err))
		}
		booking.Status = model.BookingStatusCancelled
		booking.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "cancel booking", lock.Classify(err), "booking_id", bookingID)
	}
	return &booking, nil
}

// finish logs a failed call at a level that matches its outcome and hands the
// error back unchanged. Expected rejections are not errors.
func (s *Service) finish(ctx context.Context, op string, err error, attrs ...any) error {
	kind := Outcome(err)
	attrs = append(attrs, "outcome", string(kind), "error", err)
	switch kind {
	case KindInfra:
		s.logger.ErrorContext(ctx, op+" failed", attrs...)
	case KindContended:
		s.logger.WarnContext(ctx, op+" contended", attrs...)
	default:
		s.logger.InfoContext(ctx, op+" rejected", attrs...)
	}
	return err
}

func (s *Service) notify(sessionID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Dispatch(sessionID) {
		s.logger.Warn("Notification queue full, dropping session change notice", "session_id", sessionID)
	}
}

func loadSession(tx *gorm.DB, id uuid.UUID) (model.ClassSession, error) {
	var session model.ClassSession
	if err := tx.Take(&session, "id = ?", id).Error; err != nil {
		return session, readErr(err, "session", id)
	}
	return session, nil
}

func confirmedCount(tx *gorm.DB, sessionID uuid.UUID) (int64, error) {
	var n int64
	if err := tx.Model(&model.Booking{}).
		Where("session_id = ? AND status = ?", sessionID, model.BookingStatusConfirmed).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count confirmed bookings: %w", lock.Classify(err))
	}
	return n, nil
}

func ensureExists(tx *gorm.DB, dest any, id uuid.UUID, what string) error {
	var n int64
	if err := tx.Model(dest).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("look up %s: %w", what, lock.Classify(err))
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func readErr(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("read %s %s: %w", what, id, lock.Classify(err))
}
