package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownActionType rejects writes whose code is not in the catalog.
	ErrUnknownActionType = errors.New("audit: unknown action type")
	// ErrNotFound covers both absent records and records outside the caller's scope.
	ErrNotFound = errors.New("audit: record not found")
	// ErrValidation marks malformed caller input; the wrapped message says what.
	ErrValidation = errors.New("audit: validation failed")
	// ErrVersionConflict is returned by repositories when another writer took the version.
	ErrVersionConflict = errors.New("audit: version already assigned")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
