package provider

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
)

// Google reports granted scopes in the token response "scope" field,
// space separated
var googleDefaults = Defaults{
	Endpoint:      google.Endpoint,
	UserInfoURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
	Scopes:        []string{"openid", "email", "profile"},
	TokenAccept:   "application/json",
	ExtractScopes: tokenScopeField,
}

func tokenScopeField(token map[string]any, _ http.Header, _ []string) []string {
	scope, _ := token["scope"].(string)
	return strings.Fields(scope)
}
