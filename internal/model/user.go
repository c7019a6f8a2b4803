package model

import "time"

// User represents a row in the `users` table. The password hash is
// never serialised. Accounts are soft-deleted by flipping Active to
// false; rows are only physically removed by test resets.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  Email        – unique email address.
//  FullName     – display name shown on tickets and comments.
//  PasswordHash – bcrypt hash of the password.
//  Role         – admin, reception or tech (see the perm package).
//  Active       – whether the account can log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the lightweight user view embedded in hydrated
// orders and comments.
type UserSummary struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}
