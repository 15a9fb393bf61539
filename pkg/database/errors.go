package database

import (
	"github.com/lib/pq"
	"github.com/peopleops/hrms-backend/pkg/apperr"
)

// MapPQError converts a PostgreSQL error to an application error with a
// client-safe message. Returns nil if the error is not a pq.Error.
func MapPQError(err error) *apperr.Error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Unique constraint violation
	case "23505":
		return apperr.Conflict("a record with these values already exists")

	// Foreign key violation
	case "23503":
		return apperr.InvalidInput("referenced record does not exist")

	// Not null violation
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return apperr.Validation([]apperr.FieldError{{Field: col, Message: "must not be empty"}})

	// Check constraint violation
	case "23514":
		return apperr.DomainRule("data violates a domain constraint")

	default:
		return nil
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
