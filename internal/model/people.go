package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Teacher is the actor assigned to class sessions. Its row doubles as the
// per-teacher lock target during swaps.
type Teacher struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"size:128;not null"`
	Email       string    `gorm:"size:256"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (t *Teacher) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Client books seats in class sessions.
type Client struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"size:128;not null"`
	Email       string    `gorm:"size:256"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
