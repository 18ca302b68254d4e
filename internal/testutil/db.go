// Package testutil builds migrated in-memory databases and seed rows for tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studio-booking-backend/internal/model"
)

// NewSQLite opens a private in-memory database with every model migrated.
// The pool is pinned to one connection: each ":memory:" connection would
// otherwise see its own empty database, and it is also how the sqlite
// dialect runs in production.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db))
	return db
}

// At returns 2025-03-03 at hh:mm UTC.
func At(hh, mm int) time.Time {
	return time.Date(2025, 3, 3, hh, mm, 0, 0, time.UTC)
}

// Fixture is a seeded studio with one teacher.
type Fixture struct {
	DB      *gorm.DB
	Studio  model.Studio
	Teacher model.Teacher
}

// Seed creates a studio and a teacher.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{
		DB:      db,
		Studio:  model.Studio{Name: "Riverside", Address: "1 Quay St"},
		Teacher: model.Teacher{DisplayName: "Ana"},
	}
	require.NoError(t, db.Create(&f.Studio).Error)
	require.NoError(t, db.Create(&f.Teacher).Error)
	return f
}

// AddStudio creates another studio.
func (f *Fixture) AddStudio(t *testing.T, name string) model.Studio {
	t.Helper()
	s := model.Studio{Name: name}
	require.NoError(t, f.DB.Create(&s).Error)
	return s
}

// AddTeacher creates another teacher.
func (f *Fixture) AddTeacher(t *testing.T, name string) model.Teacher {
	t.Helper()
	tc := model.Teacher{DisplayName: name}
	require.NoError(t, f.DB.Create(&tc).Error)
	return tc
}

// AddClient creates a client.
func (f *Fixture) AddClient(t *testing.T, name string) model.Client {
	t.Helper()
	c := model.Client{DisplayName: name}
	require.NoError(t, f.DB.Create(&c).Error)
	return c
}

// AddSession creates a scheduled session in studio for teacher.
func (f *Fixture) AddSession(t *testing.T, studio model.Studio, teacher model.Teacher, name string, start, end time.Time, capacity int) model.ClassSession {
	t.Helper()
	s := model.ClassSession{
		StudioID:  studio.ID,
		TeacherID: teacher.ID,
		Name:      name,
		StartsAt:  start,
		EndsAt:    end,
		Capacity:  capacity,
	}
	require.NoError(t, f.DB.Create(&s).Error)
	return s
}

// AddUnavailability blocks time for teacher.
func (f *Fixture) AddUnavailability(t *testing.T, teacher model.Teacher, start, end time.Time, reason string) model.Unavailability {
	t.Helper()
	u := model.Unavailability{TeacherID: teacher.ID, StartsAt: start, EndsAt: end, Reason: reason}
	require.NoError(t, f.DB.Create(&u).Error)
	return u
}

// ConfirmedCount counts confirmed bookings for a session outside any lock.
func (f *Fixture) ConfirmedCount(t *testing.T, sessionID any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.DB.Model(&model.Booking{}).
		Where("session_id = ? AND status = ?", sessionID, model.BookingStatusConfirmed).
		Count(&n).Error)
	return n
}
