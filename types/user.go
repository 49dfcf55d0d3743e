package types

import "time"

// User represents an account in the system.
// Users are identified by their email address; there is no separate
// login name.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the normalized (lower-cased) email address used to log in.
	Email string `json:"email" db:"email"`

	// Name is the user's optional display name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive reports whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsStaff grants access to the admin API.
	IsStaff bool `json:"is_staff" db:"is_staff"`

	// IsSuperuser marks accounts created through createsuperuser.
	IsSuperuser bool `json:"is_superuser" db:"is_superuser"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Token is the persisted bearer credential of a user. A user owns at most
// one token at a time.
type Token struct {
	Key       string    `json:"key" db:"key"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
