package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrLimitReached = errors.New("active reminder limit reached")
	// ErrConflict is returned when a write would break a uniqueness rule,
	// e.g. a second outstanding event for the same reminder.
	ErrConflict = errors.New("conflicting record")
)

const uniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
