package db

import (
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// ErrDatabaseClosed is returned when a fact batch is written after the
// store was closed, typically when an ingest is interrupted.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err is ErrDatabaseClosed or a driver
// error saying the same thing.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// IsConstraintViolation reports whether the database rejected a row
// because of a CHECK, NOT NULL, UNIQUE or foreign key constraint. Such a
// row is bad data; any other write error means the store itself failed.
func IsConstraintViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}
