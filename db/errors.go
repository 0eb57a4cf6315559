// ABOUTME: Store error kinds and driver error classification
// ABOUTME: Recognises unique violations and connectivity faults for SQLite and Postgres
package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks connectivity faults. Sync runs abort on it.
	ErrUnavailable = errors.New("store unavailable")
)

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}

	return false
}

// IsUnavailable reports whether err means the store cannot be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return true
		}
		return false
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		// Class 08: connection exception; 57P01..57P03: shutdown / cannot connect now.
		return pe.Code.Class() == "08" || strings.HasPrefix(string(pe.Code), "57P")
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	return strings.Contains(err.Error(), "sql: database is closed")
}

// classify tags connectivity faults with ErrUnavailable so callers can use errors.Is.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
