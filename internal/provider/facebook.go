package provider

import (
	"net/http"
	"slices"

	"golang.org/x/oauth2"
)

// graphVersion pins the Graph API version for every Facebook endpoint
const graphVersion = "v18.0"

// Facebook does not echo granted scopes, so the requested ones are reported
var facebookDefaults = Defaults{
	Endpoint: oauth2.Endpoint{
		AuthURL:  "https://www.facebook.com/" + graphVersion + "/dialog/oauth",
		TokenURL: "https://graph.facebook.com/" + graphVersion + "/oauth/access_token",
	},
	UserInfoURL:   "https://graph.facebook.com/" + graphVersion + "/me",
	Scopes:        []string{"email", "public_profile"},
	TokenAccept:   "application/json",
	ExtractScopes: configuredScopes,
}

func configuredScopes(_ map[string]any, _ http.Header, configured []string) []string {
	return slices.Clone(configured)
}
