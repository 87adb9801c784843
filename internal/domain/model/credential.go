package model

import "time"

// UserCredential holds the OAuth tokens obtained from the Microsoft identity
// platform for a single user. At most one active record exists per UserID;
// a revoked record keeps its row but has its token columns cleared.
type UserCredential struct {
	ID             int64
	UserID         string
	Email          string
	DisplayName    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsActive       bool
}

// TokenExpired reports whether the stored access token has expired at the
// given instant.
func (c *UserCredential) TokenExpired(now time.Time) bool {
	return !c.TokenExpiresAt.After(now)
}
