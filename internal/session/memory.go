package session

import (
	"context"
	"sync"
	"time"
)

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps sessions in a mutex-guarded map.
// Expired entries are hidden on access and removed by CleanupExpired.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryRegistry creates an in-memory registry with the given TTL
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryRegistry) Store(_ context.Context, s Session) error {
	s = stampExpiry(s, m.now(), m.ttl)

	m.mu.Lock()
	m.sessions[s.State] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryRegistry) Get(_ context.Context, state string) (Session, bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[state]
	m.mu.RUnlock()

	if !ok || s.Expired(m.now()) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryRegistry) Take(_ context.Context, state string) (Session, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[state]
	delete(m.sessions, state)
	m.mu.Unlock()

	if !ok || s.Expired(m.now()) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryRegistry) Clear(_ context.Context, state string) error {
	m.mu.Lock()
	delete(m.sessions, state)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRegistry) CleanupExpired(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for state, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, state)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored sessions, expired ones included
func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryRegistry) Close() error {
	return nil
}
