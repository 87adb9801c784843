package driven

import "errors"

// ErrNotFound is returned by store lookups when the requested entity is
// absent, inactive, or expired. Expired sessions are deliberately
// indistinguishable from sessions that never existed, so callers cannot
// learn expiry state from the error.
var ErrNotFound = errors.New("not found")

// ErrProviderRejected classifies identity provider errors where the provider
// actively refused the request (invalid code, revoked refresh token), as
// opposed to transport failures. Adapter error types match it via errors.Is.
var ErrProviderRejected = errors.New("identity provider rejected request")
