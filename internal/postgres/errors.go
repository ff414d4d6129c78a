package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeNotNullViolation = "23502"
	codeCheckViolation   = "23514"
)

// ConstraintViolation reports whether err is a schema-level rejection and returns the constraint name.
func ConstraintViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case codeCheckViolation, codeNotNullViolation:
		return pgErr.ConstraintName, true
	}
	return "", false
}
