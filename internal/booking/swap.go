package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"studio-booking-backend/internal/lock"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/schedule"
)

// SwapTeacher reassigns sessionID from expectTeacherID to newTeacherID.
//
// expectTeacherID is the teacher the caller last read. If the session is
// taught by someone else once its lock is held, another swap committed first
// and ErrContended is returned so the caller can re-read and decide again.
//
// The session row is locked first, then the new teacher's row, so concurrent
// assignments onto the same teacher are serialized and each sees the
// previous one's commit when checking for conflicts.
func (s *Service) SwapTeacher(ctx context.Context, sessionID, newTeacherID, studioID, expectTeacherID uuid.UUID) (*model.ClassSession, error) {
	var session model.ClassSession
	changed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.locker.Acquire(tx, lock.SessionResource, sessionID); err != nil {
			return err
		}

		var err error
		session, err = loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.StudioID != studioID || session.Status != model.SessionStatusScheduled {
			return fmt.Errorf("session %s in studio %s: %w", sessionID, studioID, ErrNotFound)
		}
		if session.TeacherID != expectTeacherID {
			return fmt.Errorf("session %s changed teacher concurrently: %w", sessionID, ErrContended)
		}
		if session.TeacherID == newTeacherID {
			return nil
		}

		if err := s.locker.Acquire(tx, lock.TeacherResource, newTeacherID); err != nil {
			return err
		}

		window := schedule.Window{Start: session.StartsAt, End: session.EndsAt}
		res, err := s.detector.CheckAssignmentConflict(ctx, tx, newTeacherID, session.StudioID, window, &session.ID)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", lock.Classify(err))
		}
		if res.HasConflict() {
			return &ConflictError{Result: res}
		}

		if err := tx.Model(&session).Update("teacher_id", newTeacherID).Error; err != nil {
			return fmt.Errorf("update session teacher: %w", lock.Classify(err))
		}
		session.TeacherID = newTeacherID
		changed = true
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "swap teacher", lock.Classify(err),
			"session_id", sessionID, "teacher_id", newTeacherID, "studio_id", studioID)
	}

	if changed {
		s.logger.InfoContext(ctx, "Teacher swap committed",
			"session_id", sessionID, "teacher_id", newTeacherID)
		s.notify(sessionID)
	}
	return &session, nil
}

// UpdateSession applies patch to sessionID. Moving the window re-runs the
// conflict check for the current teacher; lowering capacity below the
// confirmed count is rejected.
func (s *Service) UpdateSession(ctx context.Context, sessionID uuid.UUID, patch SessionPatch) (*model.ClassSession, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("empty update: %w", ErrInvalidPatch)
	}

	var updated model.ClassSession
	moved := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.locker.Acquire(tx, lock.SessionResource, sessionID); err != nil {
			return err
		}

		current, err := loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if current.Status != model.SessionStatusScheduled {
			return fmt.Errorf("session %s is %s: %w", sessionID, current.Status, ErrNotFound)
		}

		updated, err = patch.Apply(current)
		if err != nil {
			return err
		}

		if patch.Capacity.IsSet() && updated.Capacity < current.Capacity {
			confirmed, err := confirmedCount(tx, sessionID)
			if err != nil {
				return err
			}
			if int64(updated.Capacity) < confirmed {
				return fmt.Errorf("capacity %d is below %d confirmed bookings: %w",
					updated.Capacity, confirmed, ErrInvalidPatch)
			}
		}

		moved = !updated.StartsAt.Equal(current.StartsAt) || !updated.EndsAt.Equal(current.EndsAt)
		if moved {
			if err := s.locker.Acquire(tx, lock.TeacherResource, current.TeacherID); err != nil {
				return err
			}
			window := schedule.Window{Start: updated.StartsAt, End: updated.EndsAt}
			res, err := s.detector.CheckAssignmentConflict(ctx, tx, current.TeacherID, current.StudioID, window, &current.ID)
			if err != nil {
				return fmt.Errorf("check conflicts: %w", lock.Classify(err))
			}
			if res.HasConflict() {
				return &ConflictError{Result: res}
			}
		}

		if err := tx.Model(&updated).Select("name", "room", "starts_at", "ends_at", "capacity").
			Updates(&updated).Error; err != nil {
			return fmt.Errorf("save session: %w", lock.Classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "update session", lock.Classify(err), "session_id", sessionID)
	}

	s.logger.InfoContext(ctx, "Session updated", "session_id", sessionID, "moved", moved)
	if moved {
		s.notify(sessionID)
	}
	return &updated, nil
}
