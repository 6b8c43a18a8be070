package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches, including rows owned by someone else.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user email collides case-insensitively.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrUnknownOwner is returned when a task references a user that does not exist.
	ErrUnknownOwner = errors.New("owner does not exist")
	// ErrMissingOwner guards task queries against an unset owner.
	ErrMissingOwner = errors.New("owner id required")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRep      = "22P02"
)

// mapPgError translates driver errors into repository errors.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateEmail
		case pgForeignKeyViolation:
			return ErrUnknownOwner
		case pgInvalidTextRep:
			return ErrNotFound
		}
	}
	return err
}
