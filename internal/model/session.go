package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a class session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// ClassSession is the capacity-limited, time-bounded resource clients book into.
// The confirmed-booking count is never stored here; it is recounted under lock.
type ClassSession struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	StudioID  uuid.UUID     `gorm:"type:uuid;not null;index:idx_session_studio_teacher,priority:1"`
	TeacherID uuid.UUID     `gorm:"type:uuid;not null;index:idx_session_studio_teacher,priority:2;index"`
	Name      string        `gorm:"size:128;not null"`
	Room      *string       `gorm:"size:64"`
	StartsAt  time.Time     `gorm:"not null;index"`
	EndsAt    time.Time     `gorm:"not null"`
	Capacity  int           `gorm:"not null"`
	Status    SessionStatus `gorm:"type:varchar(32);not null;default:'scheduled';index"`
	CreatedAt time.Time     `gorm:"not null"`
	UpdatedAt time.Time     `gorm:"not null"`

	// Associations
	Studio  *Studio  `gorm:"foreignKey:StudioID;constraint:OnDelete:CASCADE"`
	Teacher *Teacher `gorm:"foreignKey:TeacherID;constraint:OnDelete:RESTRICT"`
}

func (s *ClassSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	if s.Status == "" {
		s.Status = SessionStatusScheduled
	}
	return nil
}

// BeforeSave keeps stored instants in UTC so range comparisons are consistent on every dialect.
func (s *ClassSession) BeforeSave(tx *gorm.DB) error {
	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	return nil
}
