package model

import "time"

// SessionToken is a short-lived opaque credential identifying a web browser's
// authenticated state. Expiry is checked lazily on every read; there is no
// background sweeper.
type SessionToken struct {
	ID        int64
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsActive  bool
}

// Expired reports whether the session has passed its expiry at the given instant.
func (s *SessionToken) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
