package provider

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2/github"
)

// GitHub returns form-encoded token responses unless asked for JSON, and
// reports granted scopes in the X-OAuth-Scopes header of API responses
var githubDefaults = Defaults{
	Endpoint:      github.Endpoint,
	UserInfoURL:   "https://api.github.com/user",
	Scopes:        []string{"user:email", "read:user"},
	TokenAccept:   "application/vnd.github+json",
	ExtractScopes: oauthScopesHeader,
}

func oauthScopesHeader(_ map[string]any, userInfo http.Header, _ []string) []string {
	if userInfo == nil {
		return nil
	}
	header := userInfo.Get("X-OAuth-Scopes")
	if header == "" {
		return nil
	}

	var scopes []string
	for _, s := range strings.Split(header, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
