package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	t.Cleanup(func() { _ = SetLogLevel(original) })

	tests := []struct {
		input string
		want  string
	}{
		{"debug", "debug"},
		{"WARNING", "warn"},
		{"error", "error"},
		{"trace", "trace"},
		{"", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.NoError(t, SetLogLevel(tt.input))
			assert.Equal(t, tt.want, GetLogLevel())
		})
	}

	err := SetLogLevel("verbose")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLogWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	require.NoError(t, SetLogLevel("info"))

	LogInfoWithFields("callback", "Token exchange failed", map[string]any{
		"provider": "github",
	})
	LogDebugWithFields("callback", "hidden at info", nil)

	out := buf.String()
	assert.Contains(t, out, "Token exchange failed")
	assert.Contains(t, out, "component=callback")
	assert.Contains(t, out, "provider=github")
	assert.NotContains(t, out, "hidden at info")
}
