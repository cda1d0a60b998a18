package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	Email        string
	Username     string
	RegisteredAt time.Time
}

// UserReverifiedEvent is emitted when a registration cycle completes for an existing user.
type UserReverifiedEvent struct {
	EventID    string
	Email      string
	VerifiedAt time.Time
}

// UserLoggedInEvent represents the payload for auth.user.logged_in messages.
type UserLoggedInEvent struct {
	EventID    string
	Email      string
	LoggedInAt time.Time
}

// UserDeletedEvent represents the payload for auth.user.deleted messages.
type UserDeletedEvent struct {
	EventID   string
	Email     string
	DeletedAt time.Time
}
