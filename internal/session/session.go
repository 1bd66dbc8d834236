package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/oauth-bench/internal/crypto"
)

// ErrInvalidState is returned when a callback carries a state that is
// unknown, expired, already consumed, or issued for another provider
var ErrInvalidState = errors.New("invalid state")

// Session is one in-flight login attempt, keyed by its state token
type Session struct {
	Provider  string    `json:"provider"`
	State     string    `json:"state"`
	StartTime time.Time `json:"start_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at t
func (s Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Registry issues and tracks one-time state tokens.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Store inserts or overwrites the session under its state and stamps
	// its expiry from the registry TTL
	Store(ctx context.Context, s Session) error
	// Get looks up a session. Unknown and expired states report false;
	// errors are reserved for backend failures.
	Get(ctx context.Context, state string) (Session, bool, error)
	// Take atomically looks up and deletes a session, so of any number of
	// concurrent callers at most one sees it. Absence is reported like Get.
	Take(ctx context.Context, state string) (Session, bool, error)
	// Clear removes a state. Clearing an absent state is not an error.
	Clear(ctx context.Context, state string) error
	// CleanupExpired removes expired sessions and returns how many were removed
	CleanupExpired(ctx context.Context) (int, error)
	Close() error
}

// GenerateState returns a fresh state token: 32 bytes from crypto/rand,
// base64url encoded without padding
func GenerateState() (string, error) {
	return crypto.GenerateSecureToken()
}

// Begin issues a new state for provider and stores it
func Begin(ctx context.Context, r Registry, provider string) (Session, error) {
	state, err := GenerateState()
	if err != nil {
		return Session{}, fmt.Errorf("generating state: %w", err)
	}

	s := Session{
		Provider:  provider,
		State:     state,
		StartTime: time.Now(),
	}
	if err := r.Store(ctx, s); err != nil {
		return Session{}, fmt.Errorf("storing state: %w", err)
	}
	return s, nil
}

// Consume validates a callback state against the registry. The state is
// removed in the same step it is read, so each state is accepted at most
// once. A state presented for the wrong provider is burned as well.
func Consume(ctx context.Context, r Registry, state, provider string) (Session, error) {
	if state == "" {
		return Session{}, ErrInvalidState
	}

	s, ok, err := r.Take(ctx, state)
	if err != nil {
		return Session{}, fmt.Errorf("taking state: %w", err)
	}
	if !ok || s.Provider != provider {
		return Session{}, ErrInvalidState
	}
	return s, nil
}

func stampExpiry(s Session, now time.Time, ttl time.Duration) Session {
	if s.StartTime.IsZero() {
		s.StartTime = now
	}
	s.ExpiresAt = s.StartTime.Add(ttl)
	return s
}
