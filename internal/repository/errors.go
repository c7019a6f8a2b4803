// Package repository implements the persistent store for service
// orders, comments and users on top of database/sql. Domain-level
// failure signals are exposed as sentinel errors so the service and
// handler layers can react without inspecting driver internals.
package repository

import "errors"

// ErrNotFound is returned when a lookup by identifier matches no row.
// Callers translate it into a 404-class outcome.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a
// uniqueness constraint, e.g. reusing an OS number or a username.
// Callers translate it into a 409-class outcome.
var ErrDuplicate = errors.New("duplicate")
