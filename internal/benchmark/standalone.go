package benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/log"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/session"
	"github.com/dgellow/oauth-bench/internal/timing"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Credentials are the long-lived tokens used without a browser login
type Credentials struct {
	// RefreshToken is exchanged for a fresh access token (Google)
	RefreshToken string
	// AccessToken is used directly for the user-info call (GitHub, Facebook)
	AccessToken string
}

// ErrNoCredentials is returned when a provider has no standalone token configured
var ErrNoCredentials = errors.New("no standalone credentials configured")

// Standalone benchmarks one provider without a login flow. Google
// refreshes an access token first; the other providers skip the token hop.
func (r *Runner) Standalone(ctx context.Context, p *provider.Provider, creds Credentials) (Record, error) {
	start := time.Now()
	s := session.Session{Provider: p.Name(), StartTime: start}

	var token map[string]any
	var tokenTime *float64

	switch {
	case creds.RefreshToken != "":
		refreshed := r.refresh(ctx, p, creds.RefreshToken)
		if refreshed.Err != nil {
			log.LogErrorWithFields("benchmark", "Refresh token exchange failed", map[string]any{
				"provider": p.Name(),
				"error":    refreshed.Err.Error(),
			})
			return r.failed(ctx, p.Name(), s, start, refreshed.Err).Record, nil
		}
		token = tokenMap(refreshed.Value)
		tokenTime = seconds(refreshed.Duration)
	case creds.AccessToken != "":
		token = map[string]any{"access_token": creds.AccessToken}
	default:
		return Record{}, fmt.Errorf("%s: %w", p.Name(), ErrNoCredentials)
	}

	rec := Record{
		Provider:          p.Name(),
		TokenResponseTime: tokenTime,
		TokenReceived:     true,
		TokenExpiresIn:    expiresIn(token),
		StartTime:         unixSeconds(start),
	}

	accessToken, _ := token["access_token"].(string)
	userHeader := r.fetchUserInfo(ctx, p, accessToken, &rec)

	rec.Latency = round4(time.Since(start).Seconds())
	rec.ScopesGranted = strings.Join(p.GrantedScopes(token, userHeader), ",")
	rec.Timestamp = r.now().Format(TimestampLayout)

	r.emit(ctx, rec)
	return rec, nil
}

// refresh runs the refresh_token grant through x/oauth2, timed and with
// caching disabled on the outbound request
func (r *Runner) refresh(ctx context.Context, p *provider.Provider, refreshToken string) timing.Timed[*oauth2.Token] {
	client := *r.client
	client.Transport = &timing.NoCacheTransport{Base: r.client.Transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &client)

	src := p.OAuth2().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return timing.Measure(src.Token)
}

func tokenMap(t *oauth2.Token) map[string]any {
	m := map[string]any{
		"access_token": t.AccessToken,
		"token_type":   t.TokenType,
	}
	if t.ExpiresIn > 0 {
		m["expires_in"] = float64(t.ExpiresIn)
	} else if !t.Expiry.IsZero() {
		m["expires_in"] = float64(int64(time.Until(t.Expiry).Seconds()))
	}
	if scope, ok := t.Extra("scope").(string); ok {
		m["scope"] = scope
	}
	return m
}

// StandaloneCredentials extracts the standalone tokens from provider config
func StandaloneCredentials(cfg *config.ProviderConfig) Credentials {
	if cfg == nil {
		return Credentials{}
	}
	return Credentials{
		RefreshToken: string(cfg.RefreshToken),
		AccessToken:  string(cfg.AccessToken),
	}
}

// RunStandalone benchmarks every provider that has credentials,
// concurrently. Providers without credentials are skipped.
func (r *Runner) RunStandalone(ctx context.Context, providers []*provider.Provider, creds map[string]Credentials) ([]Record, error) {
	records := make([]Record, len(providers))
	ran := make([]bool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		c := creds[p.Name()]
		if c.RefreshToken == "" && c.AccessToken == "" {
			log.LogInfoWithFields("benchmark", "Skipping provider without standalone credentials", map[string]any{
				"provider": p.Name(),
			})
			continue
		}
		g.Go(func() error {
			rec, err := r.Standalone(gctx, p, c)
			if err != nil {
				return err
			}
			records[i] = rec
			ran[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for i, rec := range records {
		if ran[i] {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCredentials
	}
	return out, nil
}
