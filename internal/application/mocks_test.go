package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock implementations ---

type mockProvider struct {
	authCodeURL func(state string) string
	exchange    func(ctx context.Context, code, redirectURI string) (*model.Identity, *model.TokenSet, error)
	refresh     func(ctx context.Context, refreshToken string) (*model.TokenSet, error)

	refreshCalls []string
}

func (m *mockProvider) AuthCodeURL(state string) string {
	if m.authCodeURL == nil {
		return "https://login.example.test/authorize?state=" + state
	}
	return m.authCodeURL(state)
}

func (m *mockProvider) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*model.Identity, *model.TokenSet, error) {
	return m.exchange(ctx, code, redirectURI)
}

func (m *mockProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	m.refreshCalls = append(m.refreshCalls, refreshToken)
	return m.refresh(ctx, refreshToken)
}

type updateTokensCall struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type mockCredentialStore struct {
	stored map[string]*model.UserCredential

	// saveErrs is consumed one error per Save call; nil entries succeed.
	saveErrs []error
	saves    []model.UserCredential
	updates  []updateTokensCall
	revokes  []string
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{stored: make(map[string]*model.UserCredential)}
}

func (m *mockCredentialStore) Save(_ context.Context, cred model.UserCredential) (model.UserCredential, error) {
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return model.UserCredential{}, err
		}
	}
	m.saves = append(m.saves, cred)
	cred.IsActive = true
	m.stored[cred.UserID] = &cred
	return cred, nil
}

func (m *mockCredentialStore) Get(_ context.Context, userID string) (*model.UserCredential, error) {
	cred, ok := m.stored[userID]
	if !ok || !cred.IsActive {
		return nil, driven.ErrNotFound
	}
	copied := *cred
	return &copied, nil
}

func (m *mockCredentialStore) UpdateTokens(_ context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	m.updates = append(m.updates, updateTokensCall{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
	cred, ok := m.stored[userID]
	if !ok || !cred.IsActive {
		return driven.ErrNotFound
	}
	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	cred.TokenExpiresAt = expiresAt
	return nil
}

func (m *mockCredentialStore) Revoke(_ context.Context, userID string) error {
	m.revokes = append(m.revokes, userID)
	cred, ok := m.stored[userID]
	if !ok || !cred.IsActive {
		return driven.ErrNotFound
	}
	cred.IsActive = false
	cred.AccessToken = ""
	cred.RefreshToken = ""
	return nil
}

type mockSessionStore struct {
	sessions  map[string]*model.SessionToken
	createErr error
	nextID    int64
	revokes   []string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*model.SessionToken)}
}

func (m *mockSessionStore) Create(_ context.Context, userID string, ttl time.Duration) (model.SessionToken, error) {
	if m.createErr != nil {
		return model.SessionToken{}, m.createErr
	}
	m.nextID++
	session := model.SessionToken{
		ID:        m.nextID,
		Token:     fmt.Sprintf("sess-%d", m.nextID),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
		IsActive:  true,
	}
	m.sessions[session.Token] = &session
	return session, nil
}

func (m *mockSessionStore) Get(_ context.Context, token string) (*model.SessionToken, error) {
	session, ok := m.sessions[token]
	if !ok || !session.IsActive || session.Expired(time.Now()) {
		return nil, driven.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *mockSessionStore) Revoke(_ context.Context, token string) error {
	m.revokes = append(m.revokes, token)
	if session, ok := m.sessions[token]; ok {
		session.IsActive = false
	}
	return nil
}

type mockAPIKeyStore struct {
	keys    map[string]*model.APIKey
	nextID  int64
	gets    []string
	lookups []string
	revokes []string
}

func newMockAPIKeyStore() *mockAPIKeyStore {
	return &mockAPIKeyStore{keys: make(map[string]*model.APIKey)}
}

func (m *mockAPIKeyStore) Create(_ context.Context, userID, name string) (model.APIKey, error) {
	m.nextID++
	key := model.APIKey{
		ID:        m.nextID,
		Key:       fmt.Sprintf("%skey%08d", model.APIKeyPrefix, m.nextID),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
		IsActive:  true,
	}
	m.keys[key.Key] = &key
	return key, nil
}

func (m *mockAPIKeyStore) List(_ context.Context, userID string) ([]model.APIKey, error) {
	var out []model.APIKey
	for _, key := range m.keys {
		if key.UserID != userID {
			continue
		}
		listed := *key
		listed.MaskedKey = listed.Masked()
		listed.Key = ""
		out = append(out, listed)
	}
	return out, nil
}

func (m *mockAPIKeyStore) Get(_ context.Context, key string) (*model.APIKey, error) {
	m.gets = append(m.gets, key)
	stored, ok := m.keys[key]
	if !ok || !stored.IsActive {
		return nil, driven.ErrNotFound
	}
	stored.LastUsedAt = time.Now()
	copied := *stored
	return &copied, nil
}

func (m *mockAPIKeyStore) Lookup(_ context.Context, key string) (*model.APIKey, error) {
	m.lookups = append(m.lookups, key)
	stored, ok := m.keys[key]
	if !ok || !stored.IsActive {
		return nil, driven.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *mockAPIKeyStore) Revoke(_ context.Context, key string) error {
	m.revokes = append(m.revokes, key)
	stored, ok := m.keys[key]
	if !ok || !stored.IsActive {
		return driven.ErrNotFound
	}
	stored.IsActive = false
	return nil
}

// Compile-time checks that the mocks satisfy their ports.
var (
	_ driven.IdentityProvider = (*mockProvider)(nil)
	_ driven.CredentialStore  = (*mockCredentialStore)(nil)
	_ driven.SessionStore     = (*mockSessionStore)(nil)
	_ driven.APIKeyStore      = (*mockAPIKeyStore)(nil)
)
