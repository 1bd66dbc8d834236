package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// ErrUnsupportedProvider is returned for provider names outside the configured set
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ScopeExtractor derives the granted scopes after a successful exchange.
// token is the decoded token response, userInfo the headers of the
// user-info response (nil if that call failed).
type ScopeExtractor func(token map[string]any, userInfo http.Header, configured []string) []string

// Defaults holds a provider's well-known endpoints and scopes
type Defaults struct {
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	Scopes      []string
	// TokenAccept is the Accept header sent on the token request
	TokenAccept   string
	ExtractScopes ScopeExtractor
}

// Provider is one configured OAuth client registration
type Provider struct {
	name          string
	config        oauth2.Config
	userInfoURL   string
	tokenAccept   string
	extractScopes ScopeExtractor
}

// Name returns the provider key, e.g. "github"
func (p *Provider) Name() string {
	return p.name
}

// OAuth2 returns the underlying oauth2 configuration
func (p *Provider) OAuth2() *oauth2.Config {
	return &p.config
}

// Scopes returns the configured scopes
func (p *Provider) Scopes() []string {
	return p.config.Scopes
}

// UserInfoURL returns the endpoint queried after the token exchange
func (p *Provider) UserInfoURL() string {
	return p.userInfoURL
}

// AuthURL builds the authorization URL for state. Offline access and a
// forced consent prompt are always requested.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}

// TokenRequest builds the authorization_code grant request for code
func (p *Provider) TokenRequest(ctx context.Context, code string) (*http.Request, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", p.tokenAccept)
	return req, nil
}

// UserInfoRequest builds the authenticated user-info request
func (p *Provider) UserInfoRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// GrantedScopes applies the provider's scope extraction strategy
func (p *Provider) GrantedScopes(token map[string]any, userInfo http.Header) []string {
	if p.extractScopes == nil {
		return nil
	}
	return p.extractScopes(token, userInfo, p.config.Scopes)
}
