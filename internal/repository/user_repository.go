package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hospmaint/os-manager/internal/model"
)

// UserRepo provides account persistence. Accounts are never removed;
// deactivation flips the active flag and keeps the row so historic
// orders and comments stay attributable.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const selectUser = `SELECT id, username, email, full_name, password_hash, role, active, created_at, updated_at
FROM users`

func scanUser(sc interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user with the given id or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByUsername returns the user with the given login name or
// ErrNotFound. Inactive users are returned too; the caller decides
// whether they may authenticate.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// List returns all users ordered by full name.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` ORDER BY full_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Create inserts a new account. Username and email collisions come
// back as ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (username, email, full_name, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, u.Username, u.Email, u.FullName, u.PasswordHash, u.Role, u.Active, now, now)
	if err != nil {
		return mapMySQLError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// UserDelta is a partial account update; nil fields are untouched.
type UserDelta struct {
	Email        *string
	FullName     *string
	Role         *string
	PasswordHash *string
	Active       *bool
}

// Update applies a partial update to the account with the given id.
func (r *UserRepo) Update(ctx context.Context, id uint64, d UserDelta) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if d.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *d.Email)
	}
	if d.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, *d.FullName)
	}
	if d.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *d.Role)
	}
	if d.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *d.PasswordHash)
	}
	if d.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *d.Active)
	}
	q := "UPDATE users SET "
	for i, s := range sets {
		if i > 0 {
			q += ", "
		}
		q += s
	}
	q += " WHERE id = ?"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapMySQLError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Count returns the total number of accounts. The seeder uses it to
// decide whether first-run defaults are needed.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
