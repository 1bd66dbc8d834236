package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

const statePrefix = "oauth_state:"

var _ Registry = (*RedisRegistry)(nil)

// RedisRegistry stores each session as a JSON value whose key expires
// with the session, so Redis evicts abandoned states on its own
type RedisRegistry struct {
	client rueidis.Client
	ttl    time.Duration
}

// RedisOptions contains configuration for the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisRegistry wraps an existing rueidis client
func NewRedisRegistry(client rueidis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

// NewRedisRegistryFromOptions dials Redis and returns a registry
func NewRedisRegistryFromOptions(opts RedisOptions, ttl time.Duration) (*RedisRegistry, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisRegistry(client, ttl), nil
}

func (r *RedisRegistry) Store(ctx context.Context, s Session) error {
	s = stampExpiry(s, time.Now(), r.ttl)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	seconds := int64(r.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	cmd := r.client.B().Set().Key(statePrefix + s.State).Value(string(data)).ExSeconds(seconds).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, state string) (Session, bool, error) {
	return r.fetch(ctx, r.client.B().Get().Key(statePrefix+state).Build())
}

// Take uses GETDEL (Redis 6.2+) so the read and delete are one command
func (r *RedisRegistry) Take(ctx context.Context, state string) (Session, bool, error) {
	return r.fetch(ctx, r.client.B().Getdel().Key(statePrefix+state).Build())
}

func (r *RedisRegistry) fetch(ctx context.Context, cmd rueidis.Completed) (Session, bool, error) {
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(result), &s); err != nil {
		return Session{}, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// Key TTL has second granularity
	if s.Expired(time.Now()) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (r *RedisRegistry) Clear(ctx context.Context, state string) error {
	cmd := r.client.B().Del().Key(statePrefix + state).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// CleanupExpired is a no-op: keys carry their own expiry
func (r *RedisRegistry) CleanupExpired(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisRegistry) Close() error {
	r.client.Close()
	return nil
}
