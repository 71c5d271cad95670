package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested profile or resume does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would duplicate an existing record.
	ErrConflict = errors.New("record conflict")
	// ErrMissingUser indicates a write without the owning user id.
	ErrMissingUser = errors.New("user id is required")
)

// translate maps constraint violations onto the package sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return ErrConflict
	case "23503":
		return ErrNotFound
	}
	return err
}
