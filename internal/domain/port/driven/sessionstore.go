package driven

import (
	"context"
	"time"

	"github.com/graphgate/graphgate/internal/domain/model"
)

// SessionStore defines the driven port for session token persistence.
type SessionStore interface {
	// Create generates a cryptographically random opaque token for the user
	// with expiry now+ttl. Returns ErrNotFound if the user has no active
	// credential.
	Create(ctx context.Context, userID string, ttl time.Duration) (model.SessionToken, error)

	// Get retrieves a session by token. Inactive or expired sessions return
	// ErrNotFound, indistinguishable from sessions that never existed.
	Get(ctx context.Context, token string) (*model.SessionToken, error)

	// Revoke marks the session inactive. Revoking an unknown token is a no-op.
	Revoke(ctx context.Context, token string) error
}
