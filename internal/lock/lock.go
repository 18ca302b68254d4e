// Package lock serializes mutations of a single row through the store's
// native row locks. A lock lives exactly as long as the enclosing
// transaction: it is released on commit or rollback, never explicitly.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrContended means the lock could not be taken in time (timeout,
	// deadlock victim, serialization failure). Callers may retry.
	ErrContended = errors.New("resource is contended, retry later")

	// ErrNotFound means the row to lock does not exist.
	ErrNotFound = errors.New("resource not found")
)

// Resource names a lockable table.
type Resource string

const (
	SessionResource Resource = "class_sessions"
	TeacherResource Resource = "teachers"
)

type lockedRow struct {
	ID uuid.UUID
}

// Locker takes transaction-scoped exclusive row locks.
type Locker struct {
	timeout time.Duration
}

// New returns a Locker that waits at most timeout for a lock. A zero timeout
// leaves the store's own setting in place.
func New(timeout time.Duration) *Locker {
	return &Locker{timeout: timeout}
}

// Acquire blocks until tx holds the exclusive lock on the row id of res.
// It must be called inside an open transaction and before any read of the
// row's mutable state.
//
// On postgres this is SELECT ... FOR UPDATE bounded by SET LOCAL lock_timeout.
// SQLite has no row locks; its single-writer database lock, together with the
// one-connection pool the sqlite dialect runs with, already orders writers, so
// only the existence check is issued there.
func (l *Locker) Acquire(tx *gorm.DB, res Resource, id uuid.UUID) error {
	dialect := tx.Dialector.Name()

	if dialect == "postgres" && l.timeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.timeout.Milliseconds())
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("set lock timeout: %w", Classify(err))
		}
	}

	q := tx.Table(string(res)).Select("id").Where("id = ?", id)
	if dialect != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row lockedRow
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", res, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", res, id, Classify(err))
	}
	return nil
}

// Classify maps store errors that signal lock contention to ErrContended and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrContended) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrContended, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40P01", // deadlock_detected
			"40001": // serialization_failure
			return fmt.Errorf("%w: %s", ErrContended, pgErr.Message)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrContended, liteErr)
		}
	}
	return err
}
