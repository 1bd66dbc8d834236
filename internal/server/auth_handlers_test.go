package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/session"
	"github.com/dgellow/oauth-bench/internal/testutil"
	"github.com/dgellow/oauth-bench/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	fake     *testutil.FakeProvider
	registry *session.MemoryRegistry
	sink     *testutil.RecordingSink
	handler  http.Handler
}

func newTestEnv(t *testing.T, client *http.Client) *testEnv {
	t.Helper()

	fake := testutil.NewFakeProvider(t)
	cfg := fake.Config()
	providers, err := provider.NewSet(map[string]*config.ProviderConfig{
		"google": &cfg,
		"github": &cfg,
	})
	require.NoError(t, err)

	if client == nil {
		client = fake.Server.Client()
	}

	registry := session.NewMemoryRegistry(10 * time.Minute)
	sink := &testutil.RecordingSink{}
	handler := NewRouter(RouterConfig{
		Name:      "OAuth Benchmark",
		Version:   "test",
		Registry:  registry,
		Providers: providers,
		Runner:    benchmark.NewRunner(client, sink),
	})

	return &testEnv{fake: fake, registry: registry, sink: sink, handler: handler}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// initiate starts a login and returns the issued state
func (e *testEnv) initiate(t *testing.T, name string) string {
	t.Helper()
	rr := e.get(t, "/auth/"+name)
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func callbackURL(name, code, state string) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if state != "" {
		q.Set("state", state)
	}
	return "/auth/" + name + "/callback?" + q.Encode()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestInitiateHandler_RedirectsWithState(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get(t, "/auth/google")
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, env.fake.Server.URL+"/authorize", loc.Scheme+"://"+loc.Host+loc.Path)

	q := loc.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "email")
	assert.Len(t, q.Get("state"), 43)

	s, ok, err := env.registry.Get(context.Background(), q.Get("state"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "google", s.Provider)
}

func TestInitiateHandler_UnknownProvider(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/auth/twitter", "/auth/facebook"} {
		rr := env.get(t, target)
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
	}
	assert.Equal(t, 0, env.registry.Len())
}

// Scenario A: a full login benchmarks once and the state cannot be replayed
func TestCallbackHandler_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	state := env.initiate(t, "google")

	rr := env.get(t, callbackURL("google", "auth-code", state))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "google", resp.Benchmark.Provider)
	assert.True(t, resp.Benchmark.TokenReceived)
	require.NotNil(t, resp.Benchmark.TokenResponseTime)
	require.NotNil(t, resp.Benchmark.UserInfoResponseTime)
	assert.Nil(t, resp.Benchmark.Error)
	assert.Equal(t, "email,profile", resp.Benchmark.ScopesGranted)
	assert.Equal(t, "tok123", resp.TokenResponse["access_token"])

	assert.Equal(t, 0, env.registry.Len(), "state is consumed")
	require.Len(t, env.sink.Records(), 1)

	replay := env.get(t, callbackURL("google", "auth-code", state))
	assert.Equal(t, http.StatusBadRequest, replay.Code)
	assert.Equal(t, "Invalid state", decodeError(t, replay)["message"])
	assert.Equal(t, int32(1), env.fake.TokenCalls.Load())
	assert.Len(t, env.sink.Records(), 1)
}

// Scenario B: an unknown state makes no outbound calls
func TestCallbackHandler_UnknownState(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get(t, callbackURL("google", "auth-code", "never-issued"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid state", decodeError(t, rr)["message"])
	assert.Equal(t, int32(0), env.fake.TokenCalls.Load())
	assert.Equal(t, int32(0), env.fake.UserInfoCalls.Load())
	assert.Empty(t, env.sink.Records())
}

func TestCallbackHandler_ProviderMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	state := env.initiate(t, "google")

	rr := env.get(t, callbackURL("github", "auth-code", state))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, int32(0), env.fake.TokenCalls.Load())
	assert.Equal(t, 0, env.registry.Len(), "mismatched state is burned")

	rr = env.get(t, callbackURL("google", "auth-code", state))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// Scenario C: a rejected token exchange is a 502 and user info is skipped
func TestCallbackHandler_TokenExchangeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fake.OnToken(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	})
	state := env.initiate(t, "google")

	rr := env.get(t, callbackURL("google", "bad-code", state))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "bad_gateway", body["error"])
	assert.Contains(t, body["message"], "401")

	assert.Equal(t, int32(1), env.fake.TokenCalls.Load())
	assert.Equal(t, int32(0), env.fake.UserInfoCalls.Load())
	assert.Empty(t, env.sink.Records())
}

// Scenario D: a user-info timeout is reported inside a successful response
func TestCallbackHandler_UserInfoTimeout(t *testing.T) {
	env := newTestEnv(t, timing.NewHTTPClient(time.Second, 200*time.Millisecond))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	env.fake.OnUserInfo(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	state := env.initiate(t, "google")

	rr := env.get(t, callbackURL("google", "auth-code", state))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Benchmark.TokenReceived)
	require.NotNil(t, resp.Benchmark.Error)
	assert.NotEmpty(t, *resp.Benchmark.Error)
	require.NotNil(t, resp.Benchmark.UserInfoResponseTime)
	assert.GreaterOrEqual(t, *resp.Benchmark.UserInfoResponseTime, 0.2)
	assert.Len(t, env.sink.Records(), 1)
}

func TestCallbackHandler_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{
			name:    "missing code",
			target:  callbackURL("google", "", "some-state"),
			status:  http.StatusBadRequest,
			message: "Missing code or state parameter",
		},
		{
			name:    "missing state",
			target:  callbackURL("google", "auth-code", ""),
			status:  http.StatusBadRequest,
			message: "Missing code or state parameter",
		},
		{
			name:    "provider error",
			target:  "/auth/google/callback?error=access_denied&error_description=User+denied",
			status:  http.StatusBadRequest,
			message: "Authorization failed: access_denied (User denied)",
		},
		{
			name:    "unknown provider",
			target:  callbackURL("twitter", "auth-code", "s"),
			status:  http.StatusNotFound,
			message: "Unsupported provider: twitter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.get(t, tt.target)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decodeError(t, rr)["message"])
		})
	}
	assert.Equal(t, int32(0), env.fake.TokenCalls.Load())
}

func TestCallbackHandler_ProviderErrorBurnsState(t *testing.T) {
	env := newTestEnv(t, nil)
	state := env.initiate(t, "google")

	rr := env.get(t, "/auth/google/callback?error=access_denied&state="+state)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, env.registry.Len())
}

func TestCallbackHandler_RegistryFailure(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	cfg := fake.Config()
	providers, err := provider.NewSet(map[string]*config.ProviderConfig{"google": &cfg})
	require.NoError(t, err)

	registry := &testutil.MockRegistry{}
	registry.On("Take", mock.Anything, "state-1").Return(session.Session{}, false, errors.New("redis: connection refused"))

	handlers := NewAuthHandlers(registry, providers, benchmark.NewRunner(fake.Server.Client(), nil))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/{provider}/callback", handlers.CallbackHandler)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, callbackURL("google", "c", "state-1"), nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, int32(0), fake.TokenCalls.Load())
	registry.AssertExpectations(t)
}

func TestInitiateHandler_RegistryFailure(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	cfg := fake.Config()
	providers, err := provider.NewSet(map[string]*config.ProviderConfig{"google": &cfg})
	require.NoError(t, err)

	registry := &testutil.MockRegistry{}
	registry.On("Store", mock.Anything, mock.AnythingOfType("session.Session")).Return(errors.New("quota exceeded"))

	handlers := NewAuthHandlers(registry, providers, benchmark.NewRunner(nil, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/{provider}", handlers.InitiateHandler)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
}
