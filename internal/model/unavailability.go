package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unavailability is a teacher's blocked time. It applies across all studios.
type Unavailability struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeacherID uuid.UUID `gorm:"type:uuid;not null;index"`
	StartsAt  time.Time `gorm:"not null;index"`
	EndsAt    time.Time `gorm:"not null"`
	Reason    string    `gorm:"size:256"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name; gorm would otherwise pluralise to "unavailabilities".
func (Unavailability) TableName() string { return "unavailability_windows" }

func (u *Unavailability) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

func (u *Unavailability) BeforeSave(tx *gorm.DB) error {
	u.StartsAt = u.StartsAt.UTC()
	u.EndsAt = u.EndsAt.UTC()
	return nil
}
