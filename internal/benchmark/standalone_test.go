package benchmark_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Standalone_GoogleRefresh(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	fake.OnToken(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3599,"scope":"openid email"}`))
	})

	sink := &testutil.RecordingSink{}
	runner := benchmark.NewRunner(fake.Server.Client(), sink)

	rec, err := runner.Standalone(context.Background(), newProvider(t, "google", fake.Config()), benchmark.Credentials{RefreshToken: "1//refresh"})
	require.NoError(t, err)

	form := fake.LastTokenForm()
	assert.Equal(t, "refresh_token", form["grant_type"])
	assert.Equal(t, "1//refresh", form["refresh_token"])
	assert.Equal(t, "Bearer fresh", fake.LastAuthorization())

	assert.True(t, rec.TokenReceived)
	require.NotNil(t, rec.TokenResponseTime)
	require.NotNil(t, rec.TokenExpiresIn)
	assert.InDelta(t, 3599, *rec.TokenExpiresIn, 1)
	assert.Equal(t, "openid,email", rec.ScopesGranted)
	assert.Nil(t, rec.Error)
	assert.Len(t, sink.Records(), 1)
}

func TestRunner_Standalone_RefreshFailure(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	fake.OnToken(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	runner := benchmark.NewRunner(fake.Server.Client(), nil)
	rec, err := runner.Standalone(context.Background(), newProvider(t, "google", fake.Config()), benchmark.Credentials{RefreshToken: "revoked"})
	require.NoError(t, err)

	assert.False(t, rec.TokenReceived)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "invalid_grant")
	assert.Equal(t, int32(0), fake.UserInfoCalls.Load())
}

func TestRunner_Standalone_StaticAccessToken(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	fake.OnUserInfo(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-OAuth-Scopes", "read:user")
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	})

	runner := benchmark.NewRunner(fake.Server.Client(), nil)
	rec, err := runner.Standalone(context.Background(), newProvider(t, "github", fake.Config()), benchmark.Credentials{AccessToken: "gho_static"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), fake.TokenCalls.Load())
	assert.Nil(t, rec.TokenResponseTime)
	require.NotNil(t, rec.UserInfoResponseTime)
	assert.Equal(t, "read:user", rec.ScopesGranted)
	assert.Equal(t, "Bearer gho_static", fake.LastAuthorization())
}

func TestRunner_RunStandalone(t *testing.T) {
	google := testutil.NewFakeProvider(t)
	github := testutil.NewFakeProvider(t)
	facebook := testutil.NewFakeProvider(t)

	providers := []*provider.Provider{
		newProvider(t, "google", google.Config()),
		newProvider(t, "facebook", facebook.Config()),
		newProvider(t, "github", github.Config()),
	}
	creds := map[string]benchmark.Credentials{
		"google": benchmark.StandaloneCredentials(&config.ProviderConfig{RefreshToken: "1//r"}),
		"github": benchmark.StandaloneCredentials(&config.ProviderConfig{AccessToken: "gho"}),
	}

	sink := &testutil.RecordingSink{}
	records, err := benchmark.NewRunner(nil, sink).RunStandalone(context.Background(), providers, creds)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "google", records[0].Provider)
	assert.Equal(t, "github", records[1].Provider)
	assert.Len(t, sink.Records(), 2)
	assert.Equal(t, int32(0), facebook.UserInfoCalls.Load())
}

func TestRunner_RunStandalone_NoCredentials(t *testing.T) {
	fake := testutil.NewFakeProvider(t)
	providers := []*provider.Provider{newProvider(t, "github", fake.Config())}

	_, err := benchmark.NewRunner(nil, nil).RunStandalone(context.Background(), providers, nil)
	assert.ErrorIs(t, err, benchmark.ErrNoCredentials)
}
