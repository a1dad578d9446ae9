// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User is a stored account.
//
// An account is either password-based (PasswordHash set) or Google-based
// (GoogleID set, PasswordHash nil). A Google account that later links to an
// existing password account carries both.
//
// WHY *string FOR PasswordHash, GoogleID AND AvatarURL?
// They are nullable columns. A nil pointer maps to SQL NULL, and the unique
// index on google_id allows any number of NULLs, whereas "" would collide
// after the second password-only account.
//
// PasswordHash and GoogleID are tagged json:"-" so a User can never leak
// them by accident. Handlers send PublicUser instead anyway.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`
	PasswordHash *string   `json:"-"         db:"password_hash"`
	GoogleID     *string   `json:"-"         db:"google_id"`
	AvatarURL    *string   `json:"avatarUrl" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the client-facing view of u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail trims and lower-cases an address. Every store lookup and
// insert goes through it so "A@X.com" and "a@x.com" are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
