package msgraph

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// Sentinel errors for Microsoft Graph API responses.
var (
	// ErrUnauthorized indicates the access token is invalid or expired.
	ErrUnauthorized = errors.New("msgraph: unauthorized")

	// ErrForbidden indicates the user lacks permission for the resource.
	ErrForbidden = errors.New("msgraph: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("msgraph: not found")

	// ErrRateLimited indicates the request was throttled by Microsoft Graph.
	ErrRateLimited = errors.New("msgraph: rate limited")

	// ErrServer indicates a server-side error from Microsoft Graph.
	ErrServer = errors.New("msgraph: server error")
)

// wrapStatus converts a non-success HTTP status code to an appropriate error.
func wrapStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if statusCode >= 500 {
			return ErrServer
		}
		return fmt.Errorf("msgraph: unexpected status %d", statusCode)
	}
}

// ProviderError is returned when the identity provider rejects a token
// request: an invalid, expired, or already-used authorization code, or a
// revoked refresh token. It cannot be retried transparently; the user must
// complete a fresh authorization flow.
type ProviderError struct {
	// Op is the failing operation ("exchange" or "refresh").
	Op string
	// StatusCode is the HTTP status from the token endpoint, 0 if unknown.
	StatusCode int
	// Detail is the provider's error description.
	Detail string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("identity provider rejected %s (status %d): %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("identity provider rejected %s: %s", e.Op, e.Detail)
}

// Is lets errors.Is(err, driven.ErrProviderRejected) classify provider
// rejections without callers depending on this adapter package.
func (e *ProviderError) Is(target error) bool {
	return target == driven.ErrProviderRejected
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
