package driven

import (
	"context"
	"time"

	"github.com/graphgate/graphgate/internal/domain/model"
)

// CredentialStore defines the driven port for OAuth credential persistence.
// Implementations may seal token columns at rest; this interface operates on
// plaintext values at the domain boundary.
type CredentialStore interface {
	// Save upserts the credential keyed by UserID, updating UpdatedAt and
	// re-activating a previously revoked record. Returns the stored record.
	Save(ctx context.Context, cred model.UserCredential) (model.UserCredential, error)

	// Get retrieves the active credential for the given user.
	// Returns ErrNotFound if no active record exists.
	Get(ctx context.Context, userID string) (*model.UserCredential, error)

	// UpdateTokens replaces the token columns after a refresh. An empty
	// refreshToken keeps the existing one. Returns ErrNotFound if the user
	// has no active credential.
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error

	// Revoke marks the credential inactive, clears its token columns, and
	// cascades to revoke the user's sessions and API keys in the same
	// transaction. Returns ErrNotFound if the user has no active credential.
	Revoke(ctx context.Context, userID string) error
}
