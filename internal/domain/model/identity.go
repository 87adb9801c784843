package model

import "time"

// Identity is the profile returned by the identity provider for the user who
// completed the authorization flow.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// TokenSet is one access/refresh token pair with its expiry, as issued by the
// identity provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthenticatedUser is the single abstraction every resolved credential maps
// to. Downstream handlers consume it uniformly regardless of whether the
// request carried a session cookie or a bearer API key.
type AuthenticatedUser struct {
	UserID string
	Email  string
}
