package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// Credential is the tagged union of the two credential presentation forms a
// request can carry. The union is sealed: resolution happens through one
// type switch, never ad hoc runtime inspection.
type Credential interface {
	isCredential()
}

// SessionCredential is a session token presented via the session cookie.
type SessionCredential struct {
	Token string
}

func (SessionCredential) isCredential() {}

// APIKeyCredential is an API key presented as a bearer token.
type APIKeyCredential struct {
	Key string
}

func (APIKeyCredential) isCredential() {}

// Resolver maps an inbound credential to an authenticated identity and, on
// demand, a usable downstream access token. One resolver invocation serves
// one request; the store is the only shared state.
type Resolver struct {
	creds    driven.CredentialStore
	sessions driven.SessionStore
	keys     driven.APIKeyStore
	provider driven.IdentityProvider
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver with all required dependencies.
func NewResolver(
	creds driven.CredentialStore,
	sessions driven.SessionStore,
	keys driven.APIKeyStore,
	provider driven.IdentityProvider,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		creds:    creds,
		sessions: sessions,
		keys:     keys,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve maps a credential to its authenticated user. A nil, unknown,
// expired, or revoked credential fails ErrUnauthenticated. Resolving an API
// key touches its last-used timestamp.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (*model.AuthenticatedUser, error) {
	var userID string

	switch c := cred.(type) {
	case SessionCredential:
		session, err := r.sessions.Get(ctx, c.Token)
		if errors.Is(err, driven.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		if err != nil {
			return nil, fmt.Errorf("resolve session: %w", err)
		}
		userID = session.UserID
	case APIKeyCredential:
		key, err := r.keys.Get(ctx, c.Key)
		if errors.Is(err, driven.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		if err != nil {
			return nil, fmt.Errorf("resolve api key: %w", err)
		}
		userID = key.UserID
	default:
		return nil, ErrUnauthenticated
	}

	stored, err := r.creds.Get(ctx, userID)
	if errors.Is(err, driven.ErrNotFound) {
		// The credential was revoked out from under the session or key.
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("resolve credential for %q: %w", userID, err)
	}

	return &model.AuthenticatedUser{UserID: stored.UserID, Email: stored.Email}, nil
}

// ResolveOptional behaves like Resolve but treats an absent credential as
// "no user" instead of a failure. Optional-auth callers get (nil, nil).
func (r *Resolver) ResolveOptional(ctx context.Context, cred Credential) (*model.AuthenticatedUser, error) {
	if cred == nil {
		return nil, nil
	}
	return r.Resolve(ctx, cred)
}

// AccessToken returns a usable downstream access token for the user,
// silently refreshing through the identity provider when the stored token
// has expired. Two requests racing to refresh both obtain a fresh token from
// the same refresh token, so the second write is an idempotent overwrite.
//
// A provider rejection fails ErrReauthRequired without touching the session:
// only the downstream call fails, and the user can re-run the authorization
// flow from a still-valid session.
func (r *Resolver) AccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := r.creds.Get(ctx, userID)
	if errors.Is(err, driven.ErrNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("load credential for %q: %w", userID, err)
	}

	if !cred.TokenExpired(r.now()) {
		return cred.AccessToken, nil
	}

	// No refresh token means the stored tokens are irrecoverably stale;
	// asking the provider would only fail with an opaque client error.
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token stored for %q", ErrReauthRequired, userID)
	}

	tokens, err := r.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, driven.ErrProviderRejected) {
			r.logger.Warn("refresh token rejected upstream", "user_id", userID, "error", err)
			return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}
		return "", fmt.Errorf("refresh tokens for %q: %w", userID, err)
	}

	if err := r.creds.UpdateTokens(ctx, userID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return "", fmt.Errorf("store refreshed tokens for %q: %w", userID, err)
	}

	r.logger.Info("access token refreshed", "user_id", userID, "token_expires_at", tokens.ExpiresAt)
	return tokens.AccessToken, nil
}
