// Package schedule detects collisions between a proposed teacher assignment
// and the teacher's committed sessions or blocked time.
package schedule

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"studio-booking-backend/internal/model"
)

// Detector checks proposed assignments against stored schedules.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// CheckAssignmentConflict reports the earliest-starting collision for
// assigning teacherID to window in studioID. Scheduled sessions in the same
// studio are checked first; unavailability windows, which apply across all
// studios, only when no session collides. excludeSessionID keeps a session
// from colliding with itself when it is being moved or reassigned.
//
// db should be the transaction that will perform the write, so the check and
// the write see the same locked snapshot. Passing a plain handle gives an
// advisory answer only.
func (d *Detector) CheckAssignmentConflict(
	ctx context.Context,
	db *gorm.DB,
	teacherID, studioID uuid.UUID,
	window Window,
	excludeSessionID *uuid.UUID,
) (ConflictResult, error) {
	window = window.UTC()
	if window.Empty() {
		return NoConflict, nil
	}

	sessions, err := d.overlappingSessions(ctx, db, teacherID, studioID, window, excludeSessionID)
	if err != nil {
		return ConflictResult{}, err
	}
	if len(sessions) > 0 {
		s := sessions[0]
		c := &SessionConflict{
			SessionID: s.ID,
			Name:      s.Name,
			StudioID:  s.StudioID,
			Window:    Window{Start: s.StartsAt.UTC(), End: s.EndsAt.UTC()},
		}
		if s.Studio != nil {
			c.StudioName = s.Studio.Name
		}
		if s.Room != nil {
			c.Room = *s.Room
		}
		return ConflictResult{Kind: ConflictSchedule, Session: c}, nil
	}

	blocked, err := d.overlappingUnavailability(ctx, db, teacherID, window)
	if err != nil {
		return ConflictResult{}, err
	}
	if len(blocked) > 0 {
		u := blocked[0]
		return ConflictResult{
			Kind: ConflictBlockedTime,
			Blocked: &BlockedConflict{
				UnavailabilityID: u.ID,
				Reason:           u.Reason,
				Window:           Window{Start: u.StartsAt.UTC(), End: u.EndsAt.UTC()},
			},
		}, nil
	}

	return NoConflict, nil
}

func (d *Detector) overlappingSessions(
	ctx context.Context,
	db *gorm.DB,
	teacherID, studioID uuid.UUID,
	window Window,
	excludeSessionID *uuid.UUID,
) ([]model.ClassSession, error) {
	q := db.WithContext(ctx).
		Preload("Studio").
		Where("teacher_id = ? AND studio_id = ?", teacherID, studioID).
		Where("status = ?", model.SessionStatusScheduled).
		Where("starts_at < ? AND ends_at > ?", window.End, window.Start).
		Where("starts_at < ends_at")
	if excludeSessionID != nil {
		q = q.Where("id <> ?", *excludeSessionID)
	}

	var sessions []model.ClassSession
	if err := q.Order("starts_at ASC").Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("query overlapping sessions: %w", err)
	}

	// The reported conflict is the earliest one; do not depend on the
	// engine honouring ORDER BY through the preload path.
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].StartsAt.Equal(sessions[j].StartsAt) {
			return sessions[i].StartsAt.Before(sessions[j].StartsAt)
		}
		return sessions[i].ID.String() < sessions[j].ID.String()
	})
	return sessions, nil
}

func (d *Detector) overlappingUnavailability(
	ctx context.Context,
	db *gorm.DB,
	teacherID uuid.UUID,
	window Window,
) ([]model.Unavailability, error) {
	var blocked []model.Unavailability
	err := db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Where("starts_at < ? AND ends_at > ?", window.End, window.Start).
		Where("starts_at < ends_at").
		Order("starts_at ASC").Order("id ASC").
		Find(&blocked).Error
	if err != nil {
		return nil, fmt.Errorf("query overlapping unavailability: %w", err)
	}

	sort.SliceStable(blocked, func(i, j int) bool {
		if !blocked[i].StartsAt.Equal(blocked[j].StartsAt) {
			return blocked[i].StartsAt.Before(blocked[j].StartsAt)
		}
		return blocked[i].ID.String() < blocked[j].ID.String()
	})
	return blocked, nil
}
