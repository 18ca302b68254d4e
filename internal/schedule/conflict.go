package schedule

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictKind tags a ConflictResult.
type ConflictKind string

const (
	ConflictNone        ConflictKind = "NONE"
	ConflictSchedule    ConflictKind = "SCHEDULE_CONFLICT"
	ConflictBlockedTime ConflictKind = "BLOCKED_TIME"
)

// SessionConflict describes an existing session that collides with a proposed assignment.
type SessionConflict struct {
	SessionID  uuid.UUID `json:"session_id"`
	Name       string    `json:"name"`
	StudioID   uuid.UUID `json:"studio_id"`
	StudioName string    `json:"studio_name"`
	Room       string    `json:"room,omitempty"`
	Window     Window    `json:"window"`
}

// BlockedConflict describes the unavailability window that blocks an assignment.
type BlockedConflict struct {
	UnavailabilityID uuid.UUID `json:"unavailability_id"`
	Reason           string    `json:"reason,omitempty"`
	Window           Window    `json:"window"`
}

// ConflictResult is the outcome of one conflict check. At most one of
// Session and Blocked is set, matching Kind.
type ConflictResult struct {
	Kind    ConflictKind     `json:"kind"`
	Session *SessionConflict `json:"session,omitempty"`
	Blocked *BlockedConflict `json:"blocked,omitempty"`
}

// NoConflict is the empty result.
var NoConflict = ConflictResult{Kind: ConflictNone}

// HasConflict reports whether the check found a collision.
func (r ConflictResult) HasConflict() bool {
	return r.Kind != ConflictNone && r.Kind != ""
}

// Message renders the result for end users.
func (r ConflictResult) Message() string {
	const layout = "Mon 2 Jan 15:04"
	switch {
	case r.Kind == ConflictSchedule && r.Session != nil:
		s := r.Session
		where := s.StudioName
		if s.Room != "" {
			where = fmt.Sprintf("%s, %s", s.StudioName, s.Room)
		}
		return fmt.Sprintf("teacher already runs %q at %s from %s to %s UTC",
			s.Name, where, s.Window.Start.Format(layout), s.Window.End.Format("15:04"))
	case r.Kind == ConflictBlockedTime && r.Blocked != nil:
		b := r.Blocked
		msg := fmt.Sprintf("teacher is unavailable from %s to %s UTC",
			b.Window.Start.Format(layout), b.Window.End.Format(layout))
		if b.Reason != "" {
			msg += " (" + b.Reason + ")"
		}
		return msg
	case r.HasConflict():
		return string(r.Kind)
	default:
		return "no conflict"
	}
}
