package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get(t, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestHomePage(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.get(t, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	body := rr.Body.String()
	assert.Contains(t, body, "<title>OAuth Benchmark</title>")
	assert.Contains(t, body, `href="/auth/google"`)
	assert.Contains(t, body, "Login with GitHub")
	assert.NotContains(t, body, "/auth/facebook")

	notFound := httptest.NewRecorder()
	env.handler.ServeHTTP(notFound, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, notFound.Code)
}

func TestAuthRoutes_Preflight(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/auth/google", "/auth/google/callback"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, target, nil)
			req.Header.Set("Origin", "https://bench.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
			assert.Empty(t, rr.Header().Get("Location"))
		})
	}
	assert.Equal(t, 0, env.registry.Len(), "preflight must not issue a state")

	post := httptest.NewRecorder()
	env.handler.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/auth/google", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}
