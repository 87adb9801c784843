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

// Status reports the authentication state behind a session or API key.
type Status struct {
	UserID         string
	Email          string
	TokenExpiresAt time.Time
	// Active is true while the stored OAuth access token is still valid;
	// false means the next downstream call will trigger a refresh.
	Active bool
}

// KeyService manages session tokens and API keys bound to a user. Sessions
// are short-lived and web-only; API keys live until explicitly revoked and
// substitute for repeated authorization flows in programmatic clients.
// Keeping them as distinct entity kinds lets revocation policy differ.
type KeyService struct {
	creds    driven.CredentialStore
	sessions driven.SessionStore
	keys     driven.APIKeyStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewKeyService creates a KeyService with all required dependencies.
func NewKeyService(
	creds driven.CredentialStore,
	sessions driven.SessionStore,
	keys driven.APIKeyStore,
	logger *slog.Logger,
) *KeyService {
	return &KeyService{
		creds:    creds,
		sessions: sessions,
		keys:     keys,
		logger:   logger,
		now:      time.Now,
	}
}

// requireSession resolves the session token or fails ErrUnauthenticated.
// API keys deliberately cannot manage other API keys; key management is a
// web-session-only surface.
func (s *KeyService) requireSession(ctx context.Context, sessionToken string) (*model.SessionToken, error) {
	if sessionToken == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.sessions.Get(ctx, sessionToken)
	if errors.Is(err, driven.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// GenerateAPIKey mints a new key for the session's identity. The full key
// material is returned exactly once, from this call.
func (s *KeyService) GenerateAPIKey(ctx context.Context, sessionToken, name string) (model.APIKey, error) {
	session, err := s.requireSession(ctx, sessionToken)
	if err != nil {
		return model.APIKey{}, err
	}

	key, err := s.keys.Create(ctx, session.UserID, name)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("generate api key for %q: %w", session.UserID, err)
	}

	s.logger.Info("api key generated", "user_id", session.UserID, "name", name)
	return key, nil
}

// ListAPIKeys returns the session identity's keys with masked key material,
// in creation order.
func (s *KeyService) ListAPIKeys(ctx context.Context, sessionToken string) ([]model.APIKey, error) {
	session, err := s.requireSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	keys, err := s.keys.List(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("list api keys for %q: %w", session.UserID, err)
	}
	return keys, nil
}

// RevokeAPIKey revokes one of the session identity's keys. Revoking a key
// owned by another identity fails ErrForbidden without touching the key.
func (s *KeyService) RevokeAPIKey(ctx context.Context, sessionToken, key string) error {
	session, err := s.requireSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	// Lookup, not Get: an ownership check is not a use of the key and must
	// not touch its last-used timestamp.
	stored, err := s.keys.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if stored.UserID != session.UserID {
		return ErrForbidden
	}

	if err := s.keys.Revoke(ctx, key); err != nil {
		return fmt.Errorf("revoke api key for %q: %w", session.UserID, err)
	}

	s.logger.Info("api key revoked", "user_id", session.UserID, "key", stored.Masked())
	return nil
}

// Logout revokes the session. Unknown tokens are a no-op so logout is
// idempotent.
func (s *KeyService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionToken)
}

// RevokeEverything revokes the credential itself, which cascades to all
// sessions and keys of the identity in one transaction.
func (s *KeyService) RevokeEverything(ctx context.Context, sessionToken string) error {
	session, err := s.requireSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.creds.Revoke(ctx, session.UserID); err != nil {
		return fmt.Errorf("revoke credential for %q: %w", session.UserID, err)
	}
	s.logger.Info("credential revoked", "user_id", session.UserID)
	return nil
}

// StatusFor reports the authentication state behind a session or API key.
func (s *KeyService) StatusFor(ctx context.Context, cred Credential) (*Status, error) {
	var userID string

	switch c := cred.(type) {
	case SessionCredential:
		session, err := s.requireSession(ctx, c.Token)
		if err != nil {
			return nil, err
		}
		userID = session.UserID
	case APIKeyCredential:
		key, err := s.keys.Get(ctx, c.Key)
		if errors.Is(err, driven.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		if err != nil {
			return nil, fmt.Errorf("load api key: %w", err)
		}
		userID = key.UserID
	default:
		return nil, ErrUnauthenticated
	}

	stored, err := s.creds.Get(ctx, userID)
	if errors.Is(err, driven.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load credential for %q: %w", userID, err)
	}

	return &Status{
		UserID:         stored.UserID,
		Email:          stored.Email,
		TokenExpiresAt: stored.TokenExpiresAt,
		Active:         stored.IsActive && !stored.TokenExpired(s.now()),
	}, nil
}
