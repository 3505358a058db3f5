package services

import (
	"errors"
	"fmt"

	"github.com/thereayou/concord/internal/database"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrPersistence  = errors.New("storage failure")
)

// storeError classifies a room store error under a service sentinel.
func storeError(what string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, database.ErrNotMember):
		return fmt.Errorf("%s: %w", what, ErrForbidden)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%w: %s: %v", ErrPersistence, what, err)
	}
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
