package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// persistRetries is the number of retries after the first persistence
// attempt fails. Tokens are never handed out unpersisted, so giving the
// store one more chance beats failing the whole exchange on a blip.
const persistRetries = 1

// ExchangeResult is the outcome of a completed authorization code exchange.
type ExchangeResult struct {
	SessionToken string
	UserID       string
	Email        string
	DisplayName  string
}

// ExchangeService converts an authorization code into persisted credentials
// and a minted session. Per attempt the flow is strictly ordered: exchange
// with the provider, persist through the store, then issue the session.
type ExchangeService struct {
	provider   driven.IdentityProvider
	creds      driven.CredentialStore
	sessions   driven.SessionStore
	sessionTTL time.Duration
	logger     *slog.Logger

	// newBackOff builds the persistence retry policy; swappable in tests.
	newBackOff func() backoff.BackOff
}

// NewExchangeService creates an ExchangeService with all required dependencies.
func NewExchangeService(
	provider driven.IdentityProvider,
	creds driven.CredentialStore,
	sessions driven.SessionStore,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *ExchangeService {
	return &ExchangeService{
		provider:   provider,
		creds:      creds,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			return bo
		},
	}
}

// AuthCodeURL builds the provider authorization URL for the given state nonce.
func (s *ExchangeService) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// ExchangeCode redeems an authorization code, persists the resulting
// credential, and mints a session token.
//
// A provider rejection is terminal: the code cannot be reused and the error
// surfaces to the caller verbatim. A persistence failure is retried once
// with backoff; if it still fails the user stays unauthenticated. Tokens
// are never returned without being persisted first.
func (s *ExchangeService) ExchangeCode(ctx context.Context, code, redirectURI string) (*ExchangeResult, error) {
	identity, tokens, err := s.provider.ExchangeAuthCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	cred := model.UserCredential{
		UserID:         identity.UserID,
		Email:          identity.Email,
		DisplayName:    identity.DisplayName,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.ExpiresAt,
	}

	persist := func() error {
		_, err := s.creds.Save(ctx, cred)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), persistRetries), ctx)
	if err := backoff.Retry(persist, policy); err != nil {
		return nil, fmt.Errorf("persist credential for %q: %w", identity.UserID, err)
	}

	session, err := s.sessions.Create(ctx, identity.UserID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("mint session for %q: %w", identity.UserID, err)
	}

	s.logger.Info("authorization code exchanged",
		"user_id", identity.UserID,
		"email", identity.Email,
		"token_expires_at", tokens.ExpiresAt,
	)

	return &ExchangeResult{
		SessionToken: session.Token,
		UserID:       identity.UserID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
	}, nil
}
