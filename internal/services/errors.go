// Package services implements the registry business rules that sit between the HTTP handlers
// and the repositories: ownership checks, version bumps, validation, vote bookkeeping and the
// best-effort version archive.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/plugin-registry/plugin-registry/internal/validation"
)

// Sentinel errors returned (possibly wrapped) by the registry services.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// postgres SQLSTATE codes translated by mapStoreError
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// ValidationError carries the violated field constraints of a rejected entry.
type ValidationError struct {
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Path + ":" + v.Error
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// validate runs the struct rules on entry and wraps any violations in a ValidationError.
func validate(entry interface{}) error {
	violations, err := validation.Struct(entry)
	if err != nil {
		return fmt.Errorf("failed to validate entry: %w", err)
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// mapStoreError translates postgres constraint violations into service sentinels.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}
