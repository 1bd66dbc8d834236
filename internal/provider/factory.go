package provider

import (
	"fmt"
	"slices"

	"github.com/dgellow/oauth-bench/internal/config"
	"golang.org/x/oauth2"
)

// DefaultsFor returns the well-known settings for a provider name
func DefaultsFor(name string) (Defaults, bool) {
	switch name {
	case config.ProviderGoogle:
		return googleDefaults, true
	case config.ProviderFacebook:
		return facebookDefaults, true
	case config.ProviderGitHub:
		return githubDefaults, true
	default:
		return Defaults{}, false
	}
}

// New creates a Provider from its configuration. Endpoint URLs and scopes
// left empty fall back to the provider's defaults.
func New(name string, cfg config.ProviderConfig) (*Provider, error) {
	d, ok := DefaultsFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%s: clientId is required", name)
	}

	endpoint := d.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Credentials always go in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := d.UserInfoURL
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}

	scopes := slices.Clone(d.Scopes)
	if cfg.Scopes != nil {
		scopes = slices.Clone(cfg.Scopes)
	}

	return &Provider{
		name: name,
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: string(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL:   userInfoURL,
		tokenAccept:   d.TokenAccept,
		extractScopes: d.ExtractScopes,
	}, nil
}

// Set is the closed collection of configured providers
type Set struct {
	providers map[string]*Provider
}

// NewSet builds providers for every configured entry
func NewSet(cfgs map[string]*config.ProviderConfig) (*Set, error) {
	s := &Set{providers: make(map[string]*Provider, len(cfgs))}
	for name, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		p, err := New(name, *cfg)
		if err != nil {
			return nil, err
		}
		s.providers[name] = p
	}
	return s, nil
}

// Lookup returns the provider registered under name
func (s *Set) Lookup(name string) (*Provider, error) {
	if p, ok := s.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
}

// All returns configured providers in display order
func (s *Set) All() []*Provider {
	var out []*Provider
	for _, name := range config.SupportedProviders {
		if p, ok := s.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Names returns configured provider names in display order
func (s *Set) Names() []string {
	var names []string
	for _, p := range s.All() {
		names = append(names, p.Name())
	}
	return names
}
