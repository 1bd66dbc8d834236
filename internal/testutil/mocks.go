package testutil

import (
	"context"
	"sync"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/session"
	"github.com/stretchr/testify/mock"
)

// MockSink records writes and returns whatever the test configured
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, rec benchmark.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockRegistry is a testify mock of session.Registry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Store(ctx context.Context, s session.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRegistry) Get(ctx context.Context, state string) (session.Session, bool, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(session.Session), args.Bool(1), args.Error(2)
}

func (m *MockRegistry) Take(ctx context.Context, state string) (session.Session, bool, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(session.Session), args.Bool(1), args.Error(2)
}

func (m *MockRegistry) Clear(ctx context.Context, state string) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockRegistry) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRegistry) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RecordingSink keeps every record it receives
type RecordingSink struct {
	mu      sync.Mutex
	records []benchmark.Record
}

func (s *RecordingSink) Write(_ context.Context, rec benchmark.Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// Records returns a copy of the received records
func (s *RecordingSink) Records() []benchmark.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]benchmark.Record(nil), s.records...)
}
