package asterisk

import (
	"context"
	"sync"

	"github.com/plexsphere/plexmon/internal/plugin"
	"github.com/plexsphere/plexmon/internal/trunk"
)

// mockBackend returns configured stats per query and records calls.
type mockBackend struct {
	stats map[string]plugin.Stats
	errs  map[string]error

	mu     sync.Mutex
	calls  map[string]int
	closed bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		stats: make(map[string]plugin.Stats),
		errs:  make(map[string]error),
		calls: make(map[string]int),
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

func (m *mockBackend) ChannelStats(_ context.Context, _ []string) (plugin.Stats, error) {
	return m.result("channels")
}

func (m *mockBackend) PeerStats(_ context.Context, proto string) (plugin.Stats, error) {
	return m.result("peers_" + proto)
}

func (m *mockBackend) VoIPChannelStats(_ context.Context, proto string, _ []string) (plugin.Stats, error) {
	return m.result("voip_" + proto)
}

func (m *mockBackend) ConferenceStats(_ context.Context) (plugin.Stats, error) {
	return m.result("conferences")
}

func (m *mockBackend) VoicemailStats(_ context.Context) (plugin.Stats, error) {
	return m.result("voicemail")
}

func (m *mockBackend) TrunkStats(_ context.Context, _ []trunk.Matcher) (plugin.Stats, error) {
	return m.result("trunks")
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
