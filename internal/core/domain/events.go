package domain

import "time"

// AccountRegisteredEvent represents the payload for weather.account.registered messages.
// It is emitted for both first registrations and re-registrations of pending accounts.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Reregistered bool
	RegisteredAt time.Time
}

// VerificationIssuedEvent represents the payload for weather.account.verification_issued messages.
// The code itself is never part of the event.
type VerificationIssuedEvent struct {
	EventID   string
	AccountID string
	Email     string
	Reason    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Delivered bool
}

// AccountVerifiedEvent represents the payload for weather.account.verified messages.
type AccountVerifiedEvent struct {
	EventID    string
	AccountID  string
	Email      string
	VerifiedAt time.Time
}

// SessionStartedEvent represents the payload for weather.session.started messages.
type SessionStartedEvent struct {
	EventID   string
	AccountID string
	Reason    string
	StartedAt time.Time
	ExpiresAt time.Time
}

// SessionEndedEvent represents the payload for weather.session.ended messages.
type SessionEndedEvent struct {
	EventID   string
	AccountID string
	EndedAt   time.Time
}
