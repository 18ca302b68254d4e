package store

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummary is a class session as listed to clients. SeatsLeft is a
// snapshot taken without any lock and is only advisory; the booking path
// recounts under lock.
type SessionSummary struct {
	ID          uuid.UUID `json:"id"`
	StudioID    uuid.UUID `json:"studio_id"`
	TeacherID   uuid.UUID `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	Name        string    `json:"name"`
	Room        *string   `json:"room"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Capacity    int       `json:"capacity"`
	Confirmed   int64     `json:"confirmed"`
	SeatsLeft   int64     `json:"seats_left"`
	Status      string    `json:"status"`
}

// SessionFilter narrows ListStudioSessions. Zero times leave that side open.
type SessionFilter struct {
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}
