package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Studio owns class sessions. Sessions are conflict-checked within a studio.
type Studio struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	Address   string    `gorm:"size:256"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Sessions []ClassSession `gorm:"foreignKey:StudioID"`
}

func (s *Studio) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
