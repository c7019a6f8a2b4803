// Package service implements the service-order lifecycle engine and
// the comment ledger. Both operate purely on the injected store and
// broadcaster collaborators; nothing in here touches HTTP, globals
// or the legacy importer.
package service

import (
	"errors"
	"fmt"
)

// ErrDenied is returned when the acting user's role lacks the grant
// required for an operation. It is distinct from validation failures
// so callers can render a 403 rather than a 400.
var ErrDenied = errors.New("permission denied")

// ValidationError rejects malformed or missing input. It carries the
// offending field so callers can point at the right form control.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
