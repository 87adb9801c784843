package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// rejectedRefresh is a provider error that matches driven.ErrProviderRejected,
// the way the real adapter classifies an invalid_grant response.
type rejectedRefresh struct{}

func (rejectedRefresh) Error() string { return "invalid_grant: refresh token revoked" }

func (rejectedRefresh) Is(target error) bool { return target == driven.ErrProviderRejected }

func seedResolver(t *testing.T) (*Resolver, *mockCredentialStore, *mockSessionStore, *mockAPIKeyStore, *mockProvider) {
	t.Helper()

	creds := newMockCredentialStore()
	sessions := newMockSessionStore()
	keys := newMockAPIKeyStore()
	provider := &mockProvider{}
	resolver := NewResolver(creds, sessions, keys, provider, testLogger())

	_, err := creds.Save(context.Background(), model.UserCredential{
		UserID:         "u1",
		Email:          "a@b.com",
		AccessToken:    "at-1",
		RefreshToken:   "rt-1",
		TokenExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	return resolver, creds, sessions, keys, provider
}

func TestResolve_SessionCredential(t *testing.T) {
	resolver, _, sessions, _, _ := seedResolver(t)
	session, err := sessions.Create(context.Background(), "u1", time.Hour)
	require.NoError(t, err)

	user, err := resolver.Resolve(context.Background(), SessionCredential{Token: session.Token})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestResolve_APIKeyCredential(t *testing.T) {
	resolver, _, _, keys, _ := seedResolver(t)
	key, err := keys.Create(context.Background(), "u1", "ci")
	require.NoError(t, err)

	user, err := resolver.Resolve(context.Background(), APIKeyCredential{Key: key.Key})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)

	// Resolving a key touches its last-used timestamp via the store's Get.
	assert.Equal(t, []string{key.Key}, keys.gets)
}

func TestResolve_UnknownCredentials(t *testing.T) {
	resolver, _, _, _, _ := seedResolver(t)

	t.Run("unknown session token", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), SessionCredential{Token: "nope"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown api key", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), APIKeyCredential{Key: "gg_nope"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("nil credential", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), nil)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestResolve_RevokedCredentialBehindLiveSession(t *testing.T) {
	resolver, creds, sessions, _, _ := seedResolver(t)
	session, err := sessions.Create(context.Background(), "u1", time.Hour)
	require.NoError(t, err)

	// Cascade in the real store would revoke the session too; here only the
	// credential drops so the final guard is exercised.
	delete(creds.stored, "u1")

	_, err = resolver.Resolve(context.Background(), SessionCredential{Token: session.Token})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveOptional(t *testing.T) {
	resolver, _, sessions, _, _ := seedResolver(t)

	t.Run("absent credential is no user, not an error", func(t *testing.T) {
		user, err := resolver.ResolveOptional(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("present credential resolves normally", func(t *testing.T) {
		session, err := sessions.Create(context.Background(), "u1", time.Hour)
		require.NoError(t, err)
		user, err := resolver.ResolveOptional(context.Background(), SessionCredential{Token: session.Token})
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
	})

	t.Run("present but invalid credential still fails", func(t *testing.T) {
		_, err := resolver.ResolveOptional(context.Background(), SessionCredential{Token: "nope"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestAccessToken_FreshTokenReturnedWithoutRefresh(t *testing.T) {
	resolver, _, _, _, provider := seedResolver(t)

	token, err := resolver.AccessToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	assert.Empty(t, provider.refreshCalls)
}

func TestAccessToken_ExpiredTokenRefreshed(t *testing.T) {
	resolver, creds, _, _, provider := seedResolver(t)
	creds.stored["u1"].TokenExpiresAt = time.Now().Add(-time.Minute)

	newExpiry := time.Now().Add(time.Hour).UTC()
	provider.refresh = func(_ context.Context, refreshToken string) (*model.TokenSet, error) {
		return &model.TokenSet{AccessToken: "at-2", RefreshToken: "rt-2", ExpiresAt: newExpiry}, nil
	}

	token, err := resolver.AccessToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)

	// The stored refresh token was the one sent upstream, and the rotated
	// pair was written back before the token was returned.
	assert.Equal(t, []string{"rt-1"}, provider.refreshCalls)
	require.Len(t, creds.updates, 1)
	update := creds.updates[0]
	assert.Equal(t, "u1", update.UserID)
	assert.Equal(t, "at-2", update.AccessToken)
	assert.Equal(t, "rt-2", update.RefreshToken)
	assert.True(t, update.ExpiresAt.Equal(newExpiry))
}

func TestAccessToken_ProviderRejectionMapsToReauthRequired(t *testing.T) {
	resolver, creds, sessions, _, provider := seedResolver(t)
	creds.stored["u1"].TokenExpiresAt = time.Now().Add(-time.Minute)
	provider.refresh = func(_ context.Context, _ string) (*model.TokenSet, error) {
		return nil, rejectedRefresh{}
	}
	session, err := sessions.Create(context.Background(), "u1", time.Hour)
	require.NoError(t, err)

	_, err = resolver.AccessToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrReauthRequired)

	// The session itself stays valid: only downstream calls fail until the
	// user re-runs the authorization flow.
	user, err := resolver.Resolve(context.Background(), SessionCredential{Token: session.Token})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
}

func TestAccessToken_EmptyRefreshTokenIsReauth(t *testing.T) {
	resolver, creds, _, _, provider := seedResolver(t)
	creds.stored["u1"].TokenExpiresAt = time.Now().Add(-time.Minute)
	creds.stored["u1"].RefreshToken = ""

	_, err := resolver.AccessToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrReauthRequired)

	// The provider is never asked to redeem an empty refresh token.
	assert.Empty(t, provider.refreshCalls)
}

func TestAccessToken_TransportErrorIsNotReauth(t *testing.T) {
	resolver, creds, _, _, provider := seedResolver(t)
	creds.stored["u1"].TokenExpiresAt = time.Now().Add(-time.Minute)
	transportErr := errors.New("dial tcp: connection refused")
	provider.refresh = func(_ context.Context, _ string) (*model.TokenSet, error) {
		return nil, transportErr
	}

	_, err := resolver.AccessToken(context.Background(), "u1")
	require.ErrorIs(t, err, transportErr)
	assert.NotErrorIs(t, err, ErrReauthRequired)
}

func TestAccessToken_UnknownUser(t *testing.T) {
	resolver, _, _, _, _ := seedResolver(t)

	_, err := resolver.AccessToken(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
