package domain

import "time"

// Session is a server-side authorization handle bound to a verified account.
type Session struct {
	Token     string
	AccountID string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session has not yet reached its absolute expiry.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// Principal is the identity a session carries to protected resources.
type Principal struct {
	AccountID string
	Email     string
}

// Principal extracts the account identity carried by the session.
func (s Session) Principal() Principal {
	return Principal{AccountID: s.AccountID, Email: s.Email}
}
