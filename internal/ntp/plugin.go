package ntp

import (
	"context"
	"log/slog"

	"github.com/plexsphere/plexmon/internal/graph"
	"github.com/plexsphere/plexmon/internal/plugin"
)

// Graph names.
const (
	GraphStratum = "ntp_peer_stratum"
	GraphStats   = "ntp_peer_stats"
	GraphRoot    = "ntp_peer_root"
)

const (
	category    = "Time"
	defaultArgs = "--base 1000 --lower-limit 0"
)

// Plugin is the ntpstats multigraph plugin.
type Plugin struct {
	info   *Info
	logger *slog.Logger
}

// New creates the plugin. A nil query uses the network.
func New(cfg Config, query QueryFunc, logger *slog.Logger) *Plugin {
	return &Plugin{info: NewInfo(cfg, query), logger: logger}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return PluginName }

// Declare implements plugin.Plugin.
func (p *Plugin) Declare(c *graph.Catalog) error {
	graphs := []struct {
		def    graph.Definition
		fields []string
	}{
		{
			def: graph.Definition{
				Name:  GraphStratum,
				Title: "NTP Stratum for System Peer",
				Info:  "Stratum of the NTP Server the system is in sync with.",
				Args:  defaultArgs,
			},
			fields: []string{"stratum"},
		},
		{
			def: graph.Definition{
				Name:   GraphStats,
				Title:  "NTP Timing Stats for System Peer",
				Info:   "Timing Stats for the NTP Server the system is in sync with.",
				VLabel: "seconds",
				Args:   "--base 1000", // offsets are signed
			},
			fields: []string{"offset", "delay", "jitter"},
		},
		{
			def: graph.Definition{
				Name:   GraphRoot,
				Title:  "NTP Root Distance for System Peer",
				Info:   "Root delay and dispersion reported by the NTP Server.",
				VLabel: "seconds",
				Args:   defaultArgs,
			},
			fields: []string{"root_delay", "root_dispersion"},
		},
	}
	for _, g := range graphs {
		g.def.Category = category
		if err := c.DeclareGraph(g.def); err != nil {
			return err
		}
		for _, f := range g.fields {
			if err := c.DeclareField(g.def.Name, graph.Field{Name: f, Kind: graph.Gauge, Draw: graph.Line2}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Open implements plugin.Plugin. NTP is connectionless; requests, including
// the system peer lookup, are sent when the peer query runs.
func (p *Plugin) Open(context.Context) (plugin.Session, error) {
	p.logger.Debug("sampling ntp server",
		"host", p.info.cfg.Host, "system_peer", p.info.cfg.SystemPeer, "samples", p.info.cfg.Samples)
	return session{info: p.info}, nil
}

type session struct {
	info *Info
}

func (session) Close() error { return nil }

func (s session) Bindings() []plugin.Binding {
	peer := plugin.Query{Key: "peer", Fetch: s.info.PeerStats}
	return []plugin.Binding{
		{Graph: GraphStratum, Queries: []plugin.Query{peer}, Fill: copyFill("stratum")},
		{Graph: GraphStats, Queries: []plugin.Query{peer}, Fill: copyFill("offset", "delay", "jitter")},
		{Graph: GraphRoot, Queries: []plugin.Query{peer}, Fill: copyFill("root_delay", "root_dispersion")},
	}
}

func copyFill(fields ...string) func(plugin.Results, plugin.Setter) error {
	return func(res plugin.Results, set plugin.Setter) error {
		for _, f := range fields {
			if err := set(f, res.Get("peer", f)); err != nil {
				return err
			}
		}
		return nil
	}
}
