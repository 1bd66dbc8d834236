package timing

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestMeasure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		got := Measure(func() (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		})
		assert.True(t, got.OK())
		assert.Equal(t, 42, got.Value)
		assert.GreaterOrEqual(t, got.Duration, 10*time.Millisecond)
	})

	t.Run("error drops value", func(t *testing.T) {
		got := Measure(func() (int, error) {
			return 7, errors.New("boom")
		})
		assert.False(t, got.OK())
		assert.Zero(t, got.Value)
		assert.EqualError(t, got.Err, "boom")
		assert.Greater(t, got.Duration, time.Duration(0))
	})

	t.Run("panic is recovered", func(t *testing.T) {
		got := Measure(func() (string, error) {
			panic("kaboom")
		})
		require.Error(t, got.Err)
		assert.Contains(t, got.Err.Error(), "kaboom")
		assert.Greater(t, got.Duration, time.Duration(0))
	})
}

func TestDispatcher_NoCacheHeadersWin(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("Authorization", "Bearer abc")

	result := NewDispatcher(server.Client()).Do(req)
	require.NoError(t, result.Err)

	assert.Equal(t, "no-cache, no-store, must-revalidate", got.Get("Cache-Control"))
	assert.Equal(t, "no-cache", got.Get("Pragma"))
	assert.Equal(t, "0", got.Get("Expires"))
	assert.Equal(t, "Bearer abc", got.Get("Authorization"), "caller headers are kept")
	assert.Len(t, got.Values("Cache-Control"), 1)
}

func TestDispatcher_BuffersBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t"}`))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	result := NewDispatcher(server.Client()).Do(req)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Response())
	assert.Equal(t, http.StatusOK, result.Response().StatusCode)
	assert.Equal(t, `{"access_token":"t"}`, string(result.Body))
	assert.GreaterOrEqual(t, result.Duration, 20*time.Millisecond, "body read is inside the timed section")

	body, err := io.ReadAll(result.Response().Body)
	require.NoError(t, err)
	assert.Equal(t, result.Body, body)
}

func TestDispatcher_BodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "at limit", size: MaxBodySize},
		{name: "over limit", size: MaxBodySize + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte("a"), tt.size))
			}))
			defer server.Close()

			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)

			result := NewDispatcher(server.Client()).Do(req)
			if tt.wantErr {
				assert.ErrorIs(t, result.Err, ErrBodyTooLarge)
				assert.Nil(t, result.Response())
				assert.Nil(t, result.Body)
				return
			}
			require.NoError(t, result.Err)
			assert.Len(t, result.Body, tt.size)
		})
	}
}

func TestDispatcher_Non2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	result := NewDispatcher(server.Client()).Do(req)
	require.NoError(t, result.Err)
	assert.Equal(t, http.StatusUnauthorized, result.Response().StatusCode)
}

func TestDispatcher_Failures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		url     string
		client  Doer
		wantErr string
	}{
		{
			name:    "timeout",
			url:     slow.URL,
			client:  NewHTTPClient(time.Second, 50*time.Millisecond),
			wantErr: "Client.Timeout",
		},
		{
			name:    "connection refused",
			url:     closedURL,
			client:  NewHTTPClient(time.Second, time.Second),
			wantErr: "connect",
		},
		{
			name: "no response and no error",
			url:  "http://example.invalid",
			client: doerFunc(func(*http.Request) (*http.Response, error) {
				return nil, nil
			}),
			wantErr: ErrNoResponse.Error(),
		},
		{
			name: "panicking client",
			url:  "http://example.invalid",
			client: doerFunc(func(*http.Request) (*http.Response, error) {
				panic("transport exploded")
			}),
			wantErr: "transport exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, err)

			result := NewDispatcher(tt.client).Do(req)
			require.Error(t, result.Err)
			assert.Contains(t, result.Err.Error(), tt.wantErr)
			assert.Nil(t, result.Response())
			assert.Nil(t, result.Body)
			assert.Greater(t, result.Duration, time.Duration(0))
		})
	}
}

func TestNoCacheTransport(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	client := &http.Client{Transport: &NoCacheTransport{Base: server.Client().Transport}}
	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Pragma", "cache")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "no-cache", got.Get("Pragma"))
	assert.Equal(t, "cache", req.Header.Get("Pragma"), "caller request is not modified")
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	c := NewHTTPClient(0, 0)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultConnectTimeout, tr.TLSHandshakeTimeout)
}
