package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studio-booking-backend/internal/model"
)

// Store defines the read-side and subscription operations used by the HTTP
// layer. Capacity decisions never go through here.
type Store interface {
	DB() *gorm.DB
	ListStudioSessions(ctx context.Context, studioID uuid.UUID, filter SessionFilter) ([]SessionSummary, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.ClassSession, error)
	CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int64, error)
	ListConfirmedBookings(ctx context.Context, sessionID uuid.UUID) ([]model.Booking, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, sessionIDs []uuid.UUID) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB returns the underlying handle.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListStudioSessions returns the studio's sessions ordered by start time,
// each with its confirmed count.
func (s *gormStore) ListStudioSessions(ctx context.Context, studioID uuid.UUID, filter SessionFilter) ([]SessionSummary, error) {
	q := s.db.WithContext(ctx).Preload("Teacher").Where("studio_id = ?", studioID)
	if !filter.IncludeCancelled {
		q = q.Where("status = ?", model.SessionStatusScheduled)
	}
	if !filter.From.IsZero() {
		q = q.Where("ends_at > ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("starts_at < ?", filter.To.UTC())
	}

	var sessions []model.ClassSession
	if err := q.Order("starts_at ASC").Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions for studio %s: %w", studioID, err)
	}
	if len(sessions) == 0 {
		return []SessionSummary{}, nil
	}

	ids := make([]uuid.UUID, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	counts, err := s.confirmedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, Summarize(sess, counts[sess.ID]))
	}
	return out, nil
}

// Summarize flattens a session and its confirmed count.
func Summarize(sess model.ClassSession, confirmed int64) SessionSummary {
	left := int64(sess.Capacity) - confirmed
	if left < 0 {
		left = 0
	}
	sum := SessionSummary{
		ID:        sess.ID,
		StudioID:  sess.StudioID,
		TeacherID: sess.TeacherID,
		Name:      sess.Name,
		Room:      sess.Room,
		StartsAt:  sess.StartsAt.UTC(),
		EndsAt:    sess.EndsAt.UTC(),
		Capacity:  sess.Capacity,
		Confirmed: confirmed,
		SeatsLeft: left,
		Status:    string(sess.Status),
	}
	if sess.Teacher != nil {
		sum.TeacherName = sess.Teacher.DisplayName
	}
	return sum
}

// GetSession loads one session with its studio and teacher.
func (s *gormStore) GetSession(ctx context.Context, id uuid.UUID) (*model.ClassSession, error) {
	var sess model.ClassSession
	err := s.db.WithContext(ctx).
		Preload("Studio").
		Preload("Teacher").
		Take(&sess, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CountConfirmed counts confirmed bookings outside any lock.
func (s *gormStore) CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("session_id = ? AND status = ?", sessionID, model.BookingStatusConfirmed).
		Count(&n).Error
	return n, err
}

// ListConfirmedBookings returns the session's confirmed bookings, oldest first.
func (s *gormStore) ListConfirmedBookings(ctx context.Context, sessionID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("session_id = ? AND status = ?", sessionID, model.BookingStatusConfirmed).
		Order("created_at ASC").Order("id ASC").
		Find(&bookings).Error
	return bookings, err
}

func (s *gormStore) confirmedCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	type aggRow struct {
		SessionID uuid.UUID
		Confirmed int64
	}
	var aggs []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("session_id AS session_id, COUNT(*) AS confirmed").
		Where("session_id IN ? AND status = ?", ids, model.BookingStatusConfirmed).
		Group("session_id").
		Scan(&aggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(aggs))
	for _, a := range aggs {
		counts[a.SessionID] = a.Confirmed
	}
	return counts, nil
}

// UpsertSubscription creates or replaces a push subscription and the set of
// sessions it follows. Unknown session ids are ignored.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, sessionIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Sessions").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		sessions := []*model.ClassSession{}
		if len(sessionIDs) > 0 {
			if err := tx.Where("id IN ?", sessionIDs).Find(&sessions).Error; err != nil {
				return fmt.Errorf("failed to load subscribed sessions: %w", err)
			}
		}

		if err := tx.Model(sub).Association("Sessions").Replace(&sessions); err != nil {
			return fmt.Errorf("failed to replace subscribed sessions: %w", err)
		}
		return nil
	})
}

// GetSubscription loads a subscription and the sessions it follows.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Sessions").Take(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription and its session mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Select(clause.Associations).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
