package server

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgellow/oauth-bench/internal/log"
	"github.com/dgellow/oauth-bench/internal/provider"
)

//go:embed templates/home.html
var homePageTemplateHTML string

var homePageTemplate = template.Must(template.New("home").Parse(homePageTemplateHTML))

// HomePageData represents the data for the login page
type HomePageData struct {
	Name      string
	Version   string
	Providers []ProviderLink
}

// ProviderLink is one login button
type ProviderLink struct {
	Name        string
	DisplayName string
	URL         string
}

var displayNames = map[string]string{
	"google":   "Google",
	"facebook": "Facebook",
	"github":   "GitHub",
}

// NewHomeHandler renders the provider login page
func NewHomeHandler(name, version string, providers *provider.Set) http.HandlerFunc {
	data := HomePageData{Name: name, Version: version}
	for _, n := range providers.Names() {
		data.Providers = append(data.Providers, ProviderLink{
			Name:        n,
			DisplayName: displayNames[n],
			URL:         "/auth/" + n,
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := homePageTemplate.Execute(w, data); err != nil {
			log.LogErrorWithFields("server", "Failed to render home page", map[string]any{
				"error": err.Error(),
			})
		}
	}
}
