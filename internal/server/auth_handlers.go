package server

import (
	"errors"
	"net/http"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	jsonwriter "github.com/dgellow/oauth-bench/internal/json"
	"github.com/dgellow/oauth-bench/internal/log"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/session"
)

// AuthHandlers serves the login redirect and the benchmarked callback
type AuthHandlers struct {
	registry  session.Registry
	providers *provider.Set
	runner    *benchmark.Runner
}

// CallbackResponse is the body of a completed callback
type CallbackResponse struct {
	Success       bool             `json:"success"`
	Benchmark     benchmark.Record `json:"benchmark"`
	TokenResponse map[string]any   `json:"token_response"`
}

// NewAuthHandlers creates auth handlers with dependency injection
func NewAuthHandlers(registry session.Registry, providers *provider.Set, runner *benchmark.Runner) *AuthHandlers {
	return &AuthHandlers{
		registry:  registry,
		providers: providers,
		runner:    runner,
	}
}

// InitiateHandler issues a state and redirects to the provider's consent page
func (h *AuthHandlers) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, err := h.providers.Lookup(name)
	if err != nil {
		jsonwriter.WriteNotFound(w, "Unsupported provider: "+name)
		return
	}

	s, err := session.Begin(r.Context(), h.registry, p.Name())
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to store state", map[string]any{
			"provider": p.Name(),
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	log.LogDebugWithFields("auth", "Redirecting to provider", map[string]any{
		"provider": p.Name(),
	})
	http.Redirect(w, r, p.AuthURL(s.State), http.StatusFound)
}

// CallbackHandler validates the state, runs the benchmark and returns the record
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, err := h.providers.Lookup(name)
	if err != nil {
		jsonwriter.WriteNotFound(w, "Unsupported provider: "+name)
		return
	}

	q := r.URL.Query()
	state := q.Get("state")

	if providerErr := q.Get("error"); providerErr != "" {
		// Burn the state so the denied attempt cannot be replayed
		if state != "" {
			_, _ = session.Consume(r.Context(), h.registry, state, p.Name())
		}
		log.LogWarnWithFields("auth", "Provider returned an error", map[string]any{
			"provider":    p.Name(),
			"error":       providerErr,
			"description": q.Get("error_description"),
		})
		msg := "Authorization failed: " + providerErr
		if desc := q.Get("error_description"); desc != "" {
			msg += " (" + desc + ")"
		}
		jsonwriter.WriteBadRequest(w, msg)
		return
	}

	code := q.Get("code")
	if code == "" || state == "" {
		jsonwriter.WriteBadRequest(w, "Missing code or state parameter")
		return
	}

	s, err := session.Consume(r.Context(), h.registry, state, p.Name())
	if err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			log.LogWarnWithFields("auth", "Invalid state", map[string]any{
				"provider": p.Name(),
			})
			jsonwriter.WriteBadRequest(w, "Invalid state")
			return
		}
		log.LogErrorWithFields("auth", "State lookup failed", map[string]any{
			"provider": p.Name(),
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to validate state")
		return
	}

	out, err := h.runner.Callback(r.Context(), p, s, code)
	if err != nil {
		var exchangeErr *benchmark.TokenExchangeError
		if errors.As(err, &exchangeErr) {
			jsonwriter.WriteBadGateway(w, exchangeErr.Error())
			return
		}
		jsonwriter.WriteInternalServerError(w, "Benchmark failed")
		return
	}

	_ = jsonwriter.Write(w, CallbackResponse{
		Success:       true,
		Benchmark:     out.Record,
		TokenResponse: out.TokenResponse,
	})
}
