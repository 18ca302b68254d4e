package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the state of a single seat reservation.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is one client's seat in a class session.
type Booking struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	SessionID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_booking_session_status,priority:1"`
	ClientID    uuid.UUID     `gorm:"type:uuid;not null;index"`
	Status      BookingStatus `gorm:"type:varchar(32);not null;index:idx_booking_session_status,priority:2"`
	CancelledAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`

	// Associations
	Session *ClassSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Client  *Client       `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
