package model

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the booking core touches.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Studio{},
		&Teacher{},
		&Client{},
		&ClassSession{},
		&Booking{},
		&Unavailability{},
		&PushSubscription{},
	)
}
