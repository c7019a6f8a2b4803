// Package legacy imports service orders from the SHOficina workshop
// database, a password-protected Access .mdb file that only exists on
// Windows installations. The whole subsystem is best-effort: every
// failure against the file is logged and treated as "no rows this
// cycle", and on other platforms it is completely inert.
package legacy

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a Source that cannot run on the
// current platform or has no configured database path.
var ErrUnavailable = errors.New("legacy source unavailable")

// Source is the loosely-typed query surface of the legacy database.
// The schema varies by installation, so rows come back as plain
// column-name to string-value maps and the reconciler discovers the
// actual table and column names at runtime.
type Source interface {
	// Available reports whether the source can be queried at all on
	// this host. When false the reconciler never starts polling.
	Available() bool
	// Tables lists the table names, when the driver allows schema
	// introspection. An error here is not fatal: the reconciler
	// falls back to a list of known candidate names.
	Tables(ctx context.Context) ([]string, error)
	// Columns returns the column names of one table.
	Columns(ctx context.Context, table string) ([]string, error)
	// Query runs raw SQL and returns every row as a column→value
	// map. NULLs come back as empty strings.
	Query(ctx context.Context, query string) ([]map[string]string, error)
}
