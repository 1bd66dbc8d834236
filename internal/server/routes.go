package server

import (
	"net/http"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/session"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Name           string
	Version        string
	AllowedOrigins []string
	Registry       session.Registry
	Providers      *provider.Set
	Runner         *benchmark.Runner
}

// NewRouter registers every route with its middleware
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authHandlers := NewAuthHandlers(cfg.Registry, cfg.Providers, cfg.Runner)
	authMiddleware := []MiddlewareFunc{
		NewRecoverMiddleware("auth"),
		NewLoggerMiddleware("auth"),
		NewCORSMiddleware(cfg.AllowedOrigins),
	}

	mux.HandleFunc("/health", HealthHandler)
	mux.Handle("GET /{$}", ChainMiddleware(NewHomeHandler(cfg.Name, cfg.Version, cfg.Providers), NewRecoverMiddleware("server")))
	mux.Handle("GET /auth/{provider}", ChainMiddleware(http.HandlerFunc(authHandlers.InitiateHandler), authMiddleware...))
	mux.Handle("GET /auth/{provider}/callback", ChainMiddleware(http.HandlerFunc(authHandlers.CallbackHandler), authMiddleware...))

	// Preflights stop in the CORS middleware and never reach a handler
	preflight := ChainMiddleware(http.NotFoundHandler(), authMiddleware...)
	mux.Handle("OPTIONS /auth/{provider}", preflight)
	mux.Handle("OPTIONS /auth/{provider}/callback", preflight)

	return mux
}
