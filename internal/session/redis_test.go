package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisRegistry connects to localhost:6379 and skips when Redis is not available
func setupRedisRegistry(t *testing.T, ttl time.Duration) *RedisRegistry {
	t.Helper()

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{"localhost:6379"},
	})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	ctx := context.Background()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		t.Skipf("Cannot connect to Redis, skipping test: %v", err)
	}

	r := NewRedisRegistry(client, ttl)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisRegistry_StoreGetClear(t *testing.T) {
	r := setupRedisRegistry(t, time.Minute)
	ctx := context.Background()

	state, err := GenerateState()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Clear(ctx, state) })

	start := time.Now().Truncate(time.Millisecond)
	require.NoError(t, r.Store(ctx, Session{Provider: "github", State: state, StartTime: start}))

	got, ok, err := r.Get(ctx, state)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "github", got.Provider)
	assert.True(t, start.Equal(got.StartTime))

	ttl, err := r.client.Do(ctx, r.client.B().Ttl().Key(statePrefix+state).Build()).AsInt64()
	require.NoError(t, err)
	assert.InDelta(t, 60, ttl, 2)

	require.NoError(t, r.Clear(ctx, state))
	_, ok, err = r.Get(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, r.Clear(ctx, state))
}

func TestRedisRegistry_Consume(t *testing.T) {
	r := setupRedisRegistry(t, time.Minute)
	ctx := context.Background()

	s, err := Begin(ctx, r, "google")
	require.NoError(t, err)

	got, err := Consume(ctx, r, s.State, "google")
	require.NoError(t, err)
	assert.Equal(t, s.State, got.State)

	_, err = Consume(ctx, r, s.State, "google")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRedisRegistry_MismatchBurnsState(t *testing.T) {
	r := setupRedisRegistry(t, time.Minute)
	ctx := context.Background()

	s, err := Begin(ctx, r, "google")
	require.NoError(t, err)

	_, err = Consume(ctx, r, s.State, "facebook")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = Consume(ctx, r, s.State, "google")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNewRedisRegistryFromOptions(t *testing.T) {
	_, err := NewRedisRegistryFromOptions(RedisOptions{}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis addr is required")
}
