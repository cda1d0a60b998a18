package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	Email          string
	Username       string
	PasswordHash   string
	CreatedAt      time.Time
	LastVerifiedAt time.Time
	LastLoginAt    *time.Time
}

// Sanitized returns a copy of the user without credential material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
