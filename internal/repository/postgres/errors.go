package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"skynotes/internal/domain"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgInvalidTextError checks for malformed input such as a non-UUID document id
func IsPgInvalidTextError(err error) bool {
	return pgCode(err) == pgerrcode.InvalidTextRepresentation
}

// IsPgPermissionError checks for a denial by the database's access policy
func IsPgPermissionError(err error) bool {
	return pgCode(err) == pgerrcode.InsufficientPrivilege
}

// classifyError maps driver errors for a single document onto domain errors.
func classifyError(op, collection, id string, err error) error {
	switch {
	case IsPgNoRowsError(err), IsPgInvalidTextError(err):
		return &domain.NotFoundError{Message: fmt.Sprintf("%s/%s not found", collection, id)}
	case IsPgPermissionError(err):
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, domain.ErrForbidden)
	default:
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, err)
	}
}
