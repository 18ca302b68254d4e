package booking

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"studio-booking-backend/internal/lock"
	"studio-booking-backend/internal/schedule"
)

var (
	// ErrCapacityExceeded means every seat is already confirmed.
	ErrCapacityExceeded = errors.New("session capacity exceeded")

	// ErrAlreadyBooked means the client already holds a confirmed seat.
	ErrAlreadyBooked = errors.New("client already booked into session")

	// ErrInvalidPatch means a session patch would leave the session invalid.
	ErrInvalidPatch = errors.New("invalid session update")

	// ErrNotFound and ErrContended are the lock package's sentinels so that
	// errors.Is works whichever package the caller imports.
	ErrNotFound  = lock.ErrNotFound
	ErrContended = lock.ErrContended
)

// ConflictError carries the detector result that rejected a swap or move.
type ConflictError struct {
	Result schedule.ConflictResult
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Result.Kind, e.Result.Message())
}

// Kind classifies the outcome of an orchestrator call.
type Kind string

const (
	KindOK               Kind = "OK"
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"
	KindAlreadyBooked    Kind = "ALREADY_BOOKED"
	KindScheduleConflict Kind = "SCHEDULE_CONFLICT"
	KindBlockedTime      Kind = "BLOCKED_TIME"
	KindInvalid          Kind = "INVALID"
	KindNotFound         Kind = "NOT_FOUND"
	KindContended        Kind = "CONTENDED"
	KindInfra            Kind = "INFRA_ERROR"
)

// Outcome maps an error returned by Service to its Kind. Anything not
// recognised is an infrastructure failure.
func Outcome(err error) Kind {
	if err == nil {
		return KindOK
	}

	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		if conflict.Result.Kind == schedule.ConflictBlockedTime {
			return KindBlockedTime
		}
		return KindScheduleConflict
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, ErrAlreadyBooked):
		return KindAlreadyBooked
	case errors.Is(err, ErrInvalidPatch):
		return KindInvalid
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrContended):
		return KindContended
	default:
		return KindInfra
	}
}

// isUniqueViolation reports whether err is a unique index rejecting an insert.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
