package main

import (
	"path/filepath"
	"testing"

	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, generateDefaultConfig(path))

	result, err := config.ValidateFile(path)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.NoError(t, validateConfig(path))

	for _, name := range []string{"GOOGLE", "FACEBOOK", "GITHUB"} {
		t.Setenv(name+"_CLIENT_ID", "id-"+name)
		t.Setenv(name+"_CLIENT_SECRET", "secret-"+name)
	}

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Providers, 3)
	assert.Equal(t, "http://localhost:8000/auth/github/callback", cfg.Providers["github"].RedirectURI)
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, config.SinkSheets, cfg.Sinks[0].Kind)
}
