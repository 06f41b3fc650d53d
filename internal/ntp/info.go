package ntp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	ntpclient "github.com/beevik/ntp"

	"github.com/plexsphere/plexmon/internal/plugin"
)

// QueryFunc sends one NTP request. ntpclient.QueryWithOptions in production.
type QueryFunc func(host string, opt ntpclient.QueryOptions) (*ntpclient.Response, error)

// Info samples an NTP server.
type Info struct {
	cfg   Config
	query QueryFunc
}

// NewInfo creates an Info. A nil query uses ntpclient.QueryWithOptions.
func NewInfo(cfg Config, query QueryFunc) *Info {
	cfg.ApplyDefaults()
	if query == nil {
		query = ntpclient.QueryWithOptions
	}
	return &Info{cfg: cfg, query: query}
}

// PeerStats sends cfg.Samples requests and reports the stratum, offset and
// delay of the sample with the smallest round trip, the jitter of the other
// samples' offsets against it, and the root delay and dispersion. Times are
// in seconds. Invalid responses are discarded; PeerStats fails only if no
// response was usable.
//
// With cfg.SystemPeer the requests go to the system peer of cfg.Host, so the
// stats are those of the server cfg.Host is synchronised to.
func (i *Info) PeerStats(ctx context.Context) (plugin.Stats, error) {
	host, port := i.cfg.Host, i.cfg.Port
	if i.cfg.SystemPeer {
		peer, err := i.SystemPeer(ctx)
		if err != nil {
			return nil, err
		}
		host, port = peer, DefaultPort
	}
	return i.sample(ctx, host, port)
}

// SystemPeer returns the address of the server cfg.Host is synchronised to,
// read from the reference ID of its response. The reference ID holds the
// IPv4 address of the peer from stratum 2 on; a stratum 1 server is
// synchronised to a reference clock, which cannot be queried, and is reported
// as plugin.ErrUnavailable. Peers reached over IPv6 are announced as a hash
// and cannot be resolved.
func (i *Info) SystemPeer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := i.query(i.cfg.Host, i.options(ctx, i.cfg.Port))
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		return "", fmt.Errorf("ntp: query %s: %w", i.cfg.Host, err)
	}
	if resp.Stratum < 2 {
		return "", fmt.Errorf("ntp: %s is stratum %d, synchronised to a reference clock: %w",
			i.cfg.Host, resp.Stratum, plugin.ErrUnavailable)
	}
	ref := resp.ReferenceString()
	ip := net.ParseIP(ref)
	if ip == nil || ip.IsUnspecified() || ip.IsLoopback() {
		return "", fmt.Errorf("ntp: %s reports no system peer (reference ID %s): %w",
			i.cfg.Host, ref, plugin.ErrUnavailable)
	}
	return ref, nil
}

func (i *Info) sample(ctx context.Context, host string, port int) (plugin.Stats, error) {
	var (
		samples []*ntpclient.Response
		lastErr error
	)
	for n := 0; n < i.cfg.Samples; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := i.query(host, i.options(ctx, port))
		if err == nil {
			err = resp.Validate()
		}
		if err != nil {
			lastErr = err
			continue
		}
		samples = append(samples, resp)
	}
	if len(samples) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no samples")
		}
		return nil, fmt.Errorf("ntp: query %s: %w", host, lastErr)
	}
	return peerStats(samples), nil
}

// options bounds the request timeout by the deadline of ctx.
func (i *Info) options(ctx context.Context, port int) ntpclient.QueryOptions {
	timeout := i.cfg.Timeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = max(left, time.Millisecond)
		}
	}
	return ntpclient.QueryOptions{
		Timeout: timeout,
		Version: i.cfg.Version,
		Port:    port,
	}
}

func peerStats(samples []*ntpclient.Response) plugin.Stats {
	best := samples[0]
	for _, s := range samples[1:] {
		if s.RTT < best.RTT {
			best = s
		}
	}
	var sq float64
	for _, s := range samples {
		if s == best {
			continue
		}
		d := (s.ClockOffset - best.ClockOffset).Seconds()
		sq += d * d
	}
	jitter := 0.0
	if len(samples) > 1 {
		jitter = math.Sqrt(sq / float64(len(samples)-1))
	}
	return plugin.Stats{
		"stratum":         float64(best.Stratum),
		"offset":          best.ClockOffset.Seconds(),
		"delay":           best.RTT.Seconds(),
		"jitter":          jitter,
		"root_delay":      best.RootDelay.Seconds(),
		"root_dispersion": best.RootDispersion.Seconds(),
	}
}
