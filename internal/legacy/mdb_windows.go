//go:build windows

package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/alexbrainman/odbc" // Access ODBC driver
)

// AccessSource reads the SHOficina .mdb file through the Microsoft
// Access ODBC driver. The connection is opened lazily on first use so
// a missing or locked file surfaces as a query failure the reconciler
// already tolerates, not as a startup error.
type AccessSource struct {
	path     string
	password string

	mu sync.Mutex
	db *sql.DB
}

// NewAccessSource returns a source for the given database path. An
// empty path disables the source entirely.
func NewAccessSource(path, password string) *AccessSource {
	return &AccessSource{path: path, password: password}
}

// Available reports whether a database path was configured.
func (s *AccessSource) Available() bool { return s.path != "" }

// Close releases the underlying connection pool.
func (s *AccessSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

func (s *AccessSource) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if s.path == "" {
		return nil, ErrUnavailable
	}
	dsn := fmt.Sprintf("Driver={Microsoft Access Driver (*.mdb, *.accdb)};Dbq=%s;Pwd=%s;", s.path, s.password)
	db, err := sql.Open("odbc", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection: the Jet engine dislikes concurrent readers
	// on a password-protected file.
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// Tables lists table names from the MSysObjects catalog. Many
// installations deny read access to the catalog; the error is
// returned and the reconciler falls back to its candidate list.
func (s *AccessSource) Tables(ctx context.Context) ([]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	const q = `SELECT Name FROM MSysObjects WHERE Type = 1 AND Flags = 0`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Columns probes one table with a single-row select and reports the
// column names of the result set.
func (s *AccessSource) Columns(ctx context.Context, table string) ([]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT TOP 1 * FROM [%s]", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

// Query runs raw SQL and flattens every row into a column→string map.
// NULL values become empty strings.
func (s *AccessSource) Query(ctx context.Context, query string) ([]map[string]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(sql.NullString)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		row := make(map[string]string, len(cols))
		for i, c := range cols {
			ns := vals[i].(*sql.NullString)
			if ns.Valid {
				row[c] = ns.String
			} else {
				row[c] = ""
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
