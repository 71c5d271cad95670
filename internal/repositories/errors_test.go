package repositories

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslate(t *testing.T) {
	plain := errors.New("connection reset")
	syntax := &pgconn.PgError{Code: "42601"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: ErrConflict},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: ErrNotFound},
		{name: "other pg error", err: syntax, want: syntax},
		{name: "non pg error", err: plain, want: plain},
	}
	for _, tt := range tests {
		if got := translate(tt.err); got != tt.want {
			t.Errorf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}
