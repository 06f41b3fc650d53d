package ntp

import (
	"errors"
	"sync"
	"time"

	ntpclient "github.com/beevik/ntp"
)

// mockQuery replays responses in order and records the options it got.
type mockQuery struct {
	responses []*ntpclient.Response
	errs      []error

	mu    sync.Mutex
	calls int
	hosts []string
	opts  []ntpclient.QueryOptions
}

func (m *mockQuery) query(host string, opt ntpclient.QueryOptions) (*ntpclient.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.hosts = append(m.hosts, host)
	m.opts = append(m.opts, opt)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return nil, errAfterReplay
}

var errAfterReplay = errors.New("no more responses")

// peerRefID is 192.0.2.1, the reference ID of a server synchronised to it.
const peerRefID = 0xc0000201

// response builds a response that passes Validate.
func response(offset, rtt time.Duration) *ntpclient.Response {
	now := time.Now()
	return &ntpclient.Response{
		Time:           now,
		ReferenceTime:  now.Add(-time.Minute),
		ClockOffset:    offset,
		RTT:            rtt,
		Stratum:        2,
		ReferenceID:    peerRefID,
		RootDelay:      20 * time.Millisecond,
		RootDispersion: 30 * time.Millisecond,
	}
}
