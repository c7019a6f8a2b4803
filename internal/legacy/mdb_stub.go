//go:build !windows

package legacy

import "context"

// AccessSource is the non-Windows stand-in for the ODBC-backed
// source. The Jet/ACE drivers only exist on Windows, so on every
// other platform the source reports itself unavailable and the
// reconciler stays inert.
type AccessSource struct{}

// NewAccessSource matches the Windows constructor signature; the
// arguments are ignored here.
func NewAccessSource(path, password string) *AccessSource { return &AccessSource{} }

// Available always reports false off Windows.
func (s *AccessSource) Available() bool { return false }

// Close is a no-op.
func (s *AccessSource) Close() {}

// Tables is never reachable through the reconciler; it fails closed.
func (s *AccessSource) Tables(ctx context.Context) ([]string, error) {
	return nil, ErrUnavailable
}

// Columns fails closed.
func (s *AccessSource) Columns(ctx context.Context, table string) ([]string, error) {
	return nil, ErrUnavailable
}

// Query fails closed.
func (s *AccessSource) Query(ctx context.Context, query string) ([]map[string]string, error) {
	return nil, ErrUnavailable
}
