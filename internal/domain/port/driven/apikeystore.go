package driven

import (
	"context"

	"github.com/graphgate/graphgate/internal/domain/model"
)

// APIKeyStore defines the driven port for API key persistence. Keys are
// long-lived credentials that remain valid until explicitly revoked.
type APIKeyStore interface {
	// Create generates an opaque prefixed key bound to the user. Returns
	// ErrNotFound if the user has no active credential.
	Create(ctx context.Context, userID, name string) (model.APIKey, error)

	// List returns the user's keys in creation order. Key material is
	// masked: only MaskedKey is populated, Key is always empty.
	List(ctx context.Context, userID string) ([]model.APIKey, error)

	// Get retrieves an active key and touches its LastUsedAt as a side
	// effect. Revoked or unknown keys return ErrNotFound. Use it when the
	// key is being presented as a credential.
	Get(ctx context.Context, key string) (*model.APIKey, error)

	// Lookup retrieves an active key without touching LastUsedAt. Use it
	// for administrative checks such as ownership before revocation.
	Lookup(ctx context.Context, key string) (*model.APIKey, error)

	// Revoke marks the key inactive. A revoked key never validates again.
	Revoke(ctx context.Context, key string) error
}
