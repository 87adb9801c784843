package application

import "errors"

var (
	// ErrUnauthenticated means no usable credential was presented, or the
	// presented one is invalid, expired, or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the credential is valid but does not own the
	// resource it tried to act on.
	ErrForbidden = errors.New("forbidden")

	// ErrReauthRequired means the stored OAuth tokens are irrecoverably
	// stale: the refresh token was rejected upstream. The session stays
	// valid so the user can re-trigger the authorization flow.
	ErrReauthRequired = errors.New("reauthentication required")
)
