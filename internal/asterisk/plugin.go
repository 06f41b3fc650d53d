package asterisk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plexsphere/plexmon/internal/graph"
	"github.com/plexsphere/plexmon/internal/plugin"
	"github.com/plexsphere/plexmon/internal/trunk"
)

// Graph names.
const (
	GraphCalls       = "asterisk_calls"
	GraphChannels    = "asterisk_channels"
	GraphPeersSIP    = "asterisk_peers_sip"
	GraphPeersIAX2   = "asterisk_peers_iax2"
	GraphVoIPCodecs  = "asterisk_voip_codecs"
	GraphConferences = "asterisk_conferences"
	GraphVoicemail   = "asterisk_voicemail"
	GraphTrunks      = "asterisk_trunks"
)

const (
	category    = "Asterisk"
	defaultArgs = "--base 1000 --lower-limit 0"
)

// Backend is the statistics source of the plugin.
type Backend interface {
	ChannelStats(ctx context.Context, types []string) (plugin.Stats, error)
	PeerStats(ctx context.Context, proto string) (plugin.Stats, error)
	VoIPChannelStats(ctx context.Context, proto string, codecs []string) (plugin.Stats, error)
	ConferenceStats(ctx context.Context) (plugin.Stats, error)
	VoicemailStats(ctx context.Context) (plugin.Stats, error)
	TrunkStats(ctx context.Context, matchers []trunk.Matcher) (plugin.Stats, error)
	Close() error
}

// Opener connects a Backend.
type Opener func(ctx context.Context, cfg Config) (Backend, error)

// Connect opens an authenticated Manager Interface session. It is the Opener
// used outside of tests.
func Connect(ctx context.Context, cfg Config) (Backend, error) {
	client, err := Dial(ctx, cfg.Addr(), cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, cfg.User, cfg.Password); err != nil {
		client.Close()
		return nil, err
	}
	return &amiBackend{Info: NewInfo(client), client: client}, nil
}

type amiBackend struct {
	*Info
	client *Client
}

func (b *amiBackend) Close() error { return b.client.Close() }

// Plugin is the asteriskstats multigraph plugin.
type Plugin struct {
	cfg    Config
	open   Opener
	logger *slog.Logger
}

// New creates the plugin. Config defaults are applied automatically.
func New(cfg Config, open Opener, logger *slog.Logger) *Plugin {
	cfg.ApplyDefaults()
	return &Plugin{cfg: cfg, open: open, logger: logger}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return PluginName }

// Declare implements plugin.Plugin.
func (p *Plugin) Declare(c *graph.Catalog) error {
	d := declarer{c: c}

	d.graph(graph.Definition{
		Name:   GraphCalls,
		Title:  "Asterisk - Call Stats",
		Info:   "Asterisk - Information on Calls.",
		Period: "minute",
	})
	d.field(GraphCalls, graph.Field{Name: "active_calls", Kind: graph.Gauge, Draw: graph.Line2, Info: "Active Calls"})
	d.field(GraphCalls, graph.Field{Name: "calls_per_min", Kind: graph.Derive, Min: graph.Int(0), Draw: graph.Line2, Info: "Calls per minute"})

	d.graph(graph.Definition{
		Name:  GraphChannels,
		Title: "Asterisk - Active Channels",
		Info:  "Asterisk - Information on Active Channels.",
	})
	for _, ch := range p.cfg.Channels {
		d.field(GraphChannels, graph.Field{Name: ch, Draw: graph.AreaStack})
	}
	if p.cfg.hasDAHDI() {
		d.field(GraphChannels, graph.Field{Name: mixChannel, Draw: graph.Line2})
	}

	for _, g := range []struct{ name, proto string }{
		{GraphPeersSIP, "SIP"},
		{GraphPeersIAX2, "IAX2"},
	} {
		d.graph(graph.Definition{
			Name:  g.name,
			Title: "Asterisk - VoIP Peers - " + g.proto,
			Info:  "Asterisk - Information on " + g.proto + " VoIP Peers.",
		})
		for _, s := range PeerStates {
			d.field(g.name, graph.Field{Name: s, Draw: graph.AreaStack})
		}
	}

	d.graph(graph.Definition{
		Name:  GraphVoIPCodecs,
		Title: "Asterisk - VoIP Codecs for Active Channels",
		Info:  "Asterisk - Codecs for Active VoIP Channels (SIP/IAX2)",
	})
	for _, codec := range p.cfg.Codecs {
		d.field(GraphVoIPCodecs, graph.Field{Name: codec, Draw: graph.AreaStack})
	}
	d.field(GraphVoIPCodecs, graph.Field{Name: otherCodec, Draw: graph.AreaStack})

	d.graph(graph.Definition{
		Name:  GraphConferences,
		Title: "Asterisk - Conferences",
		Info:  "Asterisk - Information on Meetme Conferences",
	})
	d.field(GraphConferences, graph.Field{Name: "rooms", Draw: graph.Line2, Info: "Active conference rooms."})
	d.field(GraphConferences, graph.Field{Name: "users", Draw: graph.Line2, Info: "Total number of users in conferences."})

	d.graph(graph.Definition{
		Name:  GraphVoicemail,
		Title: "Asterisk - Voicemail",
		Info:  "Asterisk - Information on Voicemail Accounts",
	})
	d.field(GraphVoicemail, graph.Field{Name: "accounts", Draw: graph.Line2, Info: "Number of voicemail accounts."})
	d.field(GraphVoicemail, graph.Field{Name: "msg_avg", Draw: graph.Line2, Info: "Average number of messages per voicemail account."})
	d.field(GraphVoicemail, graph.Field{Name: "msg_max", Draw: graph.Line2, Info: "Maximum number of messages in one voicemail account."})
	d.field(GraphVoicemail, graph.Field{Name: "msg_total", Draw: graph.Line2, Info: "Total number of messages in all voicemail accounts."})

	if len(p.cfg.Trunks) > 0 {
		d.graph(graph.Definition{
			Name:  GraphTrunks,
			Title: "Asterisk - Trunks",
			Info:  "Asterisk - Active calls on trunks.",
		})
		for _, m := range p.cfg.Trunks {
			d.field(GraphTrunks, graph.Field{Name: m.Label(), Draw: graph.AreaStack})
		}
	}
	return d.err
}

// declarer declares graphs with the plugin's common attributes and keeps the
// first error.
type declarer struct {
	c   *graph.Catalog
	err error
}

func (d *declarer) graph(def graph.Definition) {
	if d.err != nil {
		return
	}
	def.Category = category
	if def.Args == "" {
		def.Args = defaultArgs
	}
	d.err = d.c.DeclareGraph(def)
}

func (d *declarer) field(graphName string, f graph.Field) {
	if d.err != nil {
		return
	}
	d.err = d.c.DeclareField(graphName, f)
}

// Open implements plugin.Plugin.
func (p *Plugin) Open(ctx context.Context) (plugin.Session, error) {
	b, err := p.open(ctx, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("asterisk: open %s: %w", p.cfg.Addr(), err)
	}
	p.logger.Debug("manager interface session opened", "addr", p.cfg.Addr())
	return &session{cfg: p.cfg, backend: b}, nil
}

type session struct {
	cfg     Config
	backend Backend
}

func (s *session) Close() error { return s.backend.Close() }

func (s *session) Bindings() []plugin.Binding {
	b := s.backend
	channels := plugin.Query{Key: "channels", Fetch: func(ctx context.Context) (plugin.Stats, error) {
		return b.ChannelStats(ctx, s.cfg.Channels)
	}}
	peers := func(proto string) plugin.Query {
		return plugin.Query{Key: "peers_" + proto, Fetch: func(ctx context.Context) (plugin.Stats, error) {
			return b.PeerStats(ctx, proto)
		}}
	}
	voip := func(proto string) plugin.Query {
		return plugin.Query{Key: "voip_" + proto, Fetch: func(ctx context.Context) (plugin.Stats, error) {
			return b.VoIPChannelStats(ctx, proto, s.cfg.Codecs)
		}}
	}
	conferences := plugin.Query{Key: "conferences", Fetch: b.ConferenceStats}
	voicemail := plugin.Query{Key: "voicemail", Fetch: b.VoicemailStats}
	trunks := plugin.Query{Key: "trunks", Fetch: func(ctx context.Context) (plugin.Stats, error) {
		return b.TrunkStats(ctx, s.cfg.Trunks)
	}}

	channelFields := append([]string(nil), s.cfg.Channels...)
	if s.cfg.hasDAHDI() {
		channelFields = append(channelFields, mixChannel)
	}
	codecFields := append(append([]string(nil), s.cfg.Codecs...), otherCodec)
	trunkFields := make([]string, len(s.cfg.Trunks))
	for i, m := range s.cfg.Trunks {
		trunkFields[i] = m.Label()
	}

	bindings := []plugin.Binding{
		{
			Graph:   GraphCalls,
			Queries: []plugin.Query{channels},
			Fill: mapFill("channels", map[string]string{
				"active_calls":  "active_calls",
				"calls_per_min": "calls_processed",
			}),
		},
		{Graph: GraphChannels, Queries: []plugin.Query{channels}, Fill: copyFill("channels", channelFields)},
		{Graph: GraphPeersSIP, Queries: []plugin.Query{peers("sip")}, Fill: copyFill("peers_sip", PeerStates)},
		{Graph: GraphPeersIAX2, Queries: []plugin.Query{peers("iax2")}, Fill: copyFill("peers_iax2", PeerStates)},
		{
			Graph:   GraphVoIPCodecs,
			Queries: []plugin.Query{voip("sip"), voip("iax2")},
			Fill:    sumFill([]string{"voip_sip", "voip_iax2"}, codecFields),
			Partial: true,
		},
		{
			Graph:   GraphConferences,
			Queries: []plugin.Query{conferences},
			Fill: mapFill("conferences", map[string]string{
				"rooms": "active_conferences",
				"users": "conference_users",
			}),
		},
		{
			Graph:   GraphVoicemail,
			Queries: []plugin.Query{voicemail},
			Fill: mapFill("voicemail", map[string]string{
				"accounts":  "accounts",
				"msg_avg":   "avg_messages",
				"msg_max":   "max_messages",
				"msg_total": "total_messages",
			}),
		},
	}
	if len(s.cfg.Trunks) > 0 {
		bindings = append(bindings, plugin.Binding{
			Graph:   GraphTrunks,
			Queries: []plugin.Query{trunks},
			Fill:    copyFill("trunks", trunkFields),
		})
	}
	return bindings
}

// copyFill sets each field to the sample of the same name.
func copyFill(query string, fields []string) func(plugin.Results, plugin.Setter) error {
	return func(res plugin.Results, set plugin.Setter) error {
		for _, f := range fields {
			if err := set(f, res.Get(query, f)); err != nil {
				return err
			}
		}
		return nil
	}
}

// mapFill sets each field to the sample it is mapped to.
func mapFill(query string, fields map[string]string) func(plugin.Results, plugin.Setter) error {
	return func(res plugin.Results, set plugin.Setter) error {
		for field, key := range fields {
			if err := set(field, res.Get(query, key)); err != nil {
				return err
			}
		}
		return nil
	}
}

// sumFill sets each field to the sum of the samples of the same name over
// queries.
func sumFill(queries, fields []string) func(plugin.Results, plugin.Setter) error {
	return func(res plugin.Results, set plugin.Setter) error {
		for _, f := range fields {
			values := make([]graph.Value, len(queries))
			for i, q := range queries {
				values[i] = res.Get(q, f)
			}
			if err := set(f, graph.Sum(values...)); err != nil {
				return err
			}
		}
		return nil
	}
}
