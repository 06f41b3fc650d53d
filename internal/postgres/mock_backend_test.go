package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/plexsphere/plexmon/internal/plugin"
)

// mockBackend returns configured stats per query and records calls.
type mockBackend struct {
	stats     map[string]plugin.Stats
	errs      map[string]error
	version   string
	databases []string
	started   time.Time

	mu     sync.Mutex
	calls  map[string]int
	closed bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		stats:     make(map[string]plugin.Stats),
		errs:      make(map[string]error),
		version:   "16.2",
		databases: []string{"app", "postgres", "template0", "template1"},
		started:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		calls:     make(map[string]int),
	}
}

func (m *mockBackend) result(key string) (plugin.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key]++
	if err := m.errs[key]; err != nil {
		return nil, err
	}
	return m.stats[key], nil
}

func (m *mockBackend) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

func (m *mockBackend) ConnectionStats(context.Context) (plugin.Stats, error) {
	return m.result("connections")
}

func (m *mockBackend) DatabaseStats(context.Context) (plugin.Stats, error) {
	return m.result("database_stats")
}

func (m *mockBackend) Uptime(context.Context) (plugin.Stats, error) {
	return m.result("uptime")
}

func (m *mockBackend) Settings(context.Context) (plugin.Stats, error) {
	return m.result("settings")
}

func (m *mockBackend) XlogStatus(context.Context) (plugin.Stats, error) {
	return m.result("xlog")
}

func (m *mockBackend) Databases(context.Context) ([]string, error) {
	if _, err := m.result("databases"); err != nil {
		return nil, err
	}
	return m.databases, nil
}

func (m *mockBackend) Version(context.Context) (string, error) {
	if _, err := m.result("version"); err != nil {
		return "", err
	}
	return m.version, nil
}

func (m *mockBackend) StartTime(context.Context) (time.Time, error) {
	if _, err := m.result("start_time"); err != nil {
		return time.Time{}, err
	}
	return m.started, nil
}

func (m *mockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockBackend) opener() Opener {
	return func(context.Context, Config) (Backend, error) { return m, nil }
}
