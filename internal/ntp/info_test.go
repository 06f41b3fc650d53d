package ntp

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	ntpclient "github.com/beevik/ntp"

	"github.com/plexsphere/plexmon/internal/plugin"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestInfo_PeerStatsPicksMinimumDelaySample(t *testing.T) {
	q := &mockQuery{responses: []*ntpclient.Response{
		response(4*time.Millisecond, 30*time.Millisecond),
		response(1*time.Millisecond, 10*time.Millisecond),
		response(-2*time.Millisecond, 20*time.Millisecond),
	}}
	info := NewInfo(Config{Host: "ntp.example.org", Port: 1123, Samples: 3}, q.query)

	stats, err := info.PeerStats(context.Background())
	if err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if !approx(stats["offset"], 0.001) {
		t.Errorf("offset = %v, want 0.001", stats["offset"])
	}
	if !approx(stats["delay"], 0.010) {
		t.Errorf("delay = %v, want 0.010", stats["delay"])
	}
	// sqrt(((0.003)^2 + (0.003)^2) / 2)
	if !approx(stats["jitter"], 0.003) {
		t.Errorf("jitter = %v, want 0.003", stats["jitter"])
	}
	if stats["stratum"] != 2 {
		t.Errorf("stratum = %v, want 2", stats["stratum"])
	}
	if !approx(stats["root_delay"], 0.020) || !approx(stats["root_dispersion"], 0.030) {
		t.Errorf("root = %v/%v", stats["root_delay"], stats["root_dispersion"])
	}

	if q.calls != 3 {
		t.Errorf("queries = %d, want 3", q.calls)
	}
	if q.hosts[0] != "ntp.example.org" {
		t.Errorf("host = %q", q.hosts[0])
	}
	if opt := q.opts[0]; opt.Port != 1123 || opt.Version != DefaultVersion || opt.Timeout != DefaultTimeout {
		t.Errorf("options = %+v", opt)
	}
}

func TestInfo_PeerStatsSamplesSystemPeer(t *testing.T) {
	local := response(0, 100*time.Microsecond)
	local.Stratum = 3
	peer := response(3*time.Millisecond, 12*time.Millisecond)
	q := &mockQuery{responses: []*ntpclient.Response{local, peer, peer}}
	info := NewInfo(Config{Host: "127.0.0.1", Port: 1123, Samples: 2, SystemPeer: true}, q.query)

	stats, err := info.PeerStats(context.Background())
	if err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if stats["stratum"] != 2 {
		t.Errorf("stratum = %v, want the peer's 2", stats["stratum"])
	}
	if !approx(stats["offset"], 0.003) || !approx(stats["delay"], 0.012) {
		t.Errorf("offset/delay = %v/%v, want the peer's 0.003/0.012", stats["offset"], stats["delay"])
	}
	wantHosts := []string{"127.0.0.1", "192.0.2.1", "192.0.2.1"}
	if len(q.hosts) != len(wantHosts) {
		t.Fatalf("hosts = %v, want %v", q.hosts, wantHosts)
	}
	for n, want := range wantHosts {
		if q.hosts[n] != want {
			t.Errorf("hosts[%d] = %q, want %q", n, q.hosts[n], want)
		}
	}
	if q.opts[0].Port != 1123 || q.opts[1].Port != DefaultPort {
		t.Errorf("ports = %d/%d, want 1123 for the daemon and %d for the peer", q.opts[0].Port, q.opts[1].Port, DefaultPort)
	}
}

func TestInfo_SystemPeerUnavailable(t *testing.T) {
	refclock := response(0, time.Millisecond)
	refclock.Stratum = 1
	refclock.ReferenceID = 0x47505300 // "GPS"
	noPeer := response(0, time.Millisecond)
	noPeer.ReferenceID = 0
	localClock := response(0, time.Millisecond)
	localClock.ReferenceID = 0x7f7f0100 // 127.127.1.0

	tests := map[string]*ntpclient.Response{
		"reference clock": refclock,
		"no peer":         noPeer,
		"local clock":     localClock,
	}
	for name, resp := range tests {
		t.Run(name, func(t *testing.T) {
			q := &mockQuery{responses: []*ntpclient.Response{resp}}
			info := NewInfo(Config{Samples: 3, SystemPeer: true}, q.query)
			if _, err := info.PeerStats(context.Background()); !errors.Is(err, plugin.ErrUnavailable) {
				t.Errorf("PeerStats() error = %v, want plugin.ErrUnavailable", err)
			}
			if q.calls != 1 {
				t.Errorf("queries = %d, want only the peer lookup", q.calls)
			}
		})
	}
}

func TestInfo_SystemPeerDaemonDown(t *testing.T) {
	q := &mockQuery{}
	_, err := NewInfo(Config{SystemPeer: true}, q.query).SystemPeer(context.Background())
	if !errors.Is(err, errAfterReplay) {
		t.Errorf("SystemPeer() error = %v, want wrapped query error", err)
	}
}

func TestInfo_PeerStatsSingleSampleHasZeroJitter(t *testing.T) {
	q := &mockQuery{responses: []*ntpclient.Response{response(time.Millisecond, time.Millisecond)}}
	stats, err := NewInfo(Config{Samples: 1}, q.query).PeerStats(context.Background())
	if err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if stats["jitter"] != 0 {
		t.Errorf("jitter = %v, want 0", stats["jitter"])
	}
}

func TestInfo_PeerStatsSkipsFailedAndInvalidSamples(t *testing.T) {
	kod := response(0, time.Millisecond)
	kod.Stratum = 0
	q := &mockQuery{
		errs:      []error{errors.New("i/o timeout")},
		responses: []*ntpclient.Response{nil, kod, response(5*time.Millisecond, 8*time.Millisecond)},
	}
	stats, err := NewInfo(Config{Samples: 3}, q.query).PeerStats(context.Background())
	if err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if !approx(stats["offset"], 0.005) {
		t.Errorf("offset = %v, want 0.005", stats["offset"])
	}
}

func TestInfo_PeerStatsAllFailed(t *testing.T) {
	q := &mockQuery{}
	_, err := NewInfo(Config{Samples: 2}, q.query).PeerStats(context.Background())
	if !errors.Is(err, errAfterReplay) {
		t.Errorf("PeerStats() error = %v, want wrapped query error", err)
	}
}

func TestInfo_PeerStatsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := &mockQuery{}
	if _, err := NewInfo(Config{}, q.query).PeerStats(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("PeerStats() error = %v, want context.Canceled", err)
	}
	if q.calls != 0 {
		t.Errorf("queries = %d, want 0", q.calls)
	}
}

func TestInfo_TimeoutBoundedByContext(t *testing.T) {
	q := &mockQuery{responses: []*ntpclient.Response{response(0, time.Millisecond)}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewInfo(Config{Samples: 1, Timeout: time.Minute}, q.query).PeerStats(ctx); err != nil {
		t.Fatalf("PeerStats: %v", err)
	}
	if got := q.opts[0].Timeout; got > time.Second {
		t.Errorf("Timeout = %v, want at most 1s", got)
	}
}
