package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgellow/oauth-bench/internal/config"
)

// FakeProvider serves token and user-info endpoints and counts calls
type FakeProvider struct {
	Server *httptest.Server

	TokenCalls    atomic.Int32
	UserInfoCalls atomic.Int32

	mu       sync.Mutex
	token    http.HandlerFunc
	userInfo http.HandlerFunc
	lastForm map[string]string
	lastAuth string
}

// NewFakeProvider starts a provider whose token endpoint returns tok123
// and whose user-info endpoint returns a small profile
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	f := &FakeProvider{
		token: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok123","token_type":"Bearer","expires_in":3599,"scope":"email profile"}`))
		},
		userInfo: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","email":"user@example.com"}`))
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.TokenCalls.Add(1)
		_ = r.ParseForm()
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.lastForm = form
		h := f.token
		f.mu.Unlock()
		h(w, r)
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.UserInfoCalls.Add(1)
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		h := f.userInfo
		f.mu.Unlock()
		h(w, r)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// OnToken replaces the token endpoint handler
func (f *FakeProvider) OnToken(h http.HandlerFunc) {
	f.mu.Lock()
	f.token = h
	f.mu.Unlock()
}

// OnUserInfo replaces the user-info endpoint handler
func (f *FakeProvider) OnUserInfo(h http.HandlerFunc) {
	f.mu.Lock()
	f.userInfo = h
	f.mu.Unlock()
}

// LastTokenForm returns the form of the most recent token request
func (f *FakeProvider) LastTokenForm() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

// LastAuthorization returns the Authorization header of the most recent user-info request
func (f *FakeProvider) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

// Config returns provider config pointing at the fake endpoints
func (f *FakeProvider) Config() config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: config.Secret("test-secret"),
		AuthURL:      f.Server.URL + "/authorize",
		TokenURL:     f.Server.URL + "/token",
		UserInfoURL:  f.Server.URL + "/userinfo",
		RedirectURI:  "http://localhost:8000/callback",
	}
}
