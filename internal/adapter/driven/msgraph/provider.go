// Package msgraph implements the IdentityProvider and MailClient ports
// against the Microsoft identity platform and the Microsoft Graph API.
package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// defaultScopes cover profile lookup and the mail operations the façade
// exposes. offline_access is required for refresh tokens.
var defaultScopes = []string{
	"User.Read",
	"Mail.Read",
	"Mail.Send",
	"Mail.ReadWrite",
	"offline_access",
}

// Compile-time interface satisfaction check.
var _ driven.IdentityProvider = (*Provider)(nil)

// Provider implements the driven.IdentityProvider port for the Microsoft
// identity platform via the OAuth 2.0 authorization-code flow.
type Provider struct {
	oauth      oauth2.Config
	httpClient *http.Client
	baseURL    string // Graph API base; overridden in tests.
}

// NewProvider creates a Provider for the given Azure AD application.
// tenantID is usually "common" for multi-tenant apps.
func NewProvider(clientID, clientSecret, tenantID, redirectURI string) *Provider {
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenantID),
			RedirectURL:  redirectURI,
			Scopes:       defaultScopes,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    graphBaseURL,
	}
}

// NewProviderWithEndpoints creates a Provider with explicit endpoints and
// HTTP client. Intended for testing against an httptest server.
func NewProviderWithEndpoints(clientID, clientSecret, redirectURI, authURL, tokenURL, graphURL string, httpClient *http.Client) *Provider {
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
			RedirectURL:  redirectURI,
			Scopes:       defaultScopes,
		},
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(graphURL, "/"),
	}
}

// AuthCodeURL builds the authorization URL for the consent screen.
// response_mode=query keeps the code in the query string on redirect.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeAuthCode redeems an authorization code for tokens and fetches the
// user's Graph profile. A rejected code fails with *ProviderError and cannot
// be retried.
func (p *Provider) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*model.Identity, *model.TokenSet, error) {
	cfg := p.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, nil, providerError("exchange", err)
	}

	identity, err := p.fetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	tokens := &model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	return identity, tokens, nil
}

// Refresh obtains a fresh access token. Microsoft may rotate the refresh
// token; when it does not, the old one is kept.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ts := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := ts.Token()
	if err != nil {
		return nil, providerError("refresh", err)
	}

	newRefreshToken := tok.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}, nil
}

// graphProfile is the subset of the Graph /me response the façade reads.
type graphProfile struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// fetchProfile resolves the authenticated user's identity from Graph /me.
func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profile: %w", wrapStatus(resp.StatusCode))
	}

	var profile graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	userID := profile.ID
	if userID == "" {
		// Personal accounts sometimes omit id; fall back to the principal
		// name's local part.
		userID, _, _ = strings.Cut(profile.UserPrincipalName, "@")
	}
	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}

	if userID == "" {
		return nil, errors.New("msgraph: profile has no usable identifier")
	}

	return &model.Identity{
		UserID:      userID,
		Email:       email,
		DisplayName: profile.DisplayName,
	}, nil
}

// providerError maps an oauth2 token-endpoint failure to *ProviderError when
// the provider actively rejected the request, preserving transport errors
// as-is.
func providerError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		detail := re.ErrorDescription
		if detail == "" {
			detail = re.ErrorCode
		}
		if detail == "" {
			detail = strings.TrimSpace(string(re.Body))
		}
		return &ProviderError{
			Op:         op,
			StatusCode: re.Response.StatusCode,
			Detail:     detail,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
