package driven

import (
	"context"

	"github.com/graphgate/graphgate/internal/domain/model"
)

// IdentityProvider defines the driven port for the external OAuth 2.0
// authorization server (the Microsoft identity platform). The façade is a
// relaying client: it never signs or issues provider tokens itself.
type IdentityProvider interface {
	// AuthCodeURL builds the authorization URL the user visits to grant
	// consent. state is an opaque nonce echoed back on the callback.
	AuthCodeURL(state string) string

	// ExchangeAuthCode redeems an authorization code for tokens and fetches
	// the user's profile. An invalid, expired, or already-used code fails
	// with a provider error; the code cannot be retried.
	ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*model.Identity, *model.TokenSet, error)

	// Refresh obtains a fresh access token from a refresh token. The
	// returned set keeps the old refresh token when the provider does not
	// rotate it.
	Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error)
}
