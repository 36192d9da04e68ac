package repo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound signals that no (active) document matched.
	ErrNotFound = errors.New("repo: not found")
	// ErrDuplicate signals a unique constraint violation.
	ErrDuplicate = errors.New("repo: duplicate")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("repo: duplicate %s %q", e.Field, e.Value)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// InvalidIDError is returned for identifiers that are not UUIDs.
type InvalidIDError struct {
	Field string
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("repo: invalid %s %q", e.Field, e.Value)
}

// InvalidQueryError is returned for unusable filter, sort or field parameters.
type InvalidQueryError struct {
	Param string
	Value string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("repo: invalid query parameter %s=%q", e.Param, e.Value)
}

// ConstraintError is a row the database refused under a CHECK constraint.
type ConstraintError struct {
	Constraint string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("repo: check constraint %s violated", e.Constraint)
}

// ValidateID checks that id is a UUID.
func ValidateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &InvalidIDError{Field: field, Value: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// asConstraintError converts a CHECK violation, leaving other errors nil.
func asConstraintError(err error) *ConstraintError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return &ConstraintError{Constraint: pgErr.ConstraintName}
	}
	return nil
}
