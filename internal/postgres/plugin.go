package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/plexsphere/plexmon/internal/graph"
	"github.com/plexsphere/plexmon/internal/plugin"
)

// Graph names.
const (
	GraphConnections = "pg_connections"
	GraphDiskSpace   = "pg_diskspace"
	GraphBlockReads  = "pg_blockreads"
	GraphXact        = "pg_xact"
	GraphTupRead     = "pg_tup_read"
	GraphTupWrite    = "pg_tup_write"
	GraphUptime      = "pg_uptime"
	GraphXlog        = "pg_xlog"
	GraphReplayLag   = "pg_replay_lag"
)

const (
	category    = "PostgreSQL"
	defaultArgs = "--base 1000 --lower-limit 0"
)

const secondsPerDay = 24 * 60 * 60

// maxConnectionsField is the connection limit in pg_connections.
const maxConnectionsField = "max_connections"

// Backend is the statistics source of the plugin.
type Backend interface {
	ConnectionStats(ctx context.Context) (plugin.Stats, error)
	DatabaseStats(ctx context.Context) (plugin.Stats, error)
	Uptime(ctx context.Context) (plugin.Stats, error)
	Settings(ctx context.Context) (plugin.Stats, error)
	XlogStatus(ctx context.Context) (plugin.Stats, error)
	Databases(ctx context.Context) ([]string, error)
	Version(ctx context.Context) (string, error)
	StartTime(ctx context.Context) (time.Time, error)
	Close() error
}

// Opener connects a Backend.
type Opener func(ctx context.Context, cfg Config) (Backend, error)

// Connect opens a connection pool and checks that the server answers. It is
// the Opener used outside of tests.
func Connect(ctx context.Context, cfg Config) (Backend, error) {
	db, err := sql.Open(DriverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(2)
	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &dbBackend{Info: NewInfo(db), db: db}, nil
}

type dbBackend struct {
	*Info
	db *sql.DB
}

func (b *dbBackend) Close() error { return b.db.Close() }

// Plugin is the pgstats multigraph plugin.
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

// counterField maps a database counter onto a graph field.
type counterField struct {
	name    string
	counter string
	kind    graph.Kind
	info    string
}

// totalsGraph is a graph of counters summed over all databases.
type totalsGraph struct {
	def    graph.Definition
	fields []counterField
}

func (p *Plugin) totalsGraphs() []totalsGraph {
	return []totalsGraph{
		{
			def: graph.Definition{
				Name:   GraphBlockReads,
				Title:  "PostgreSQL - Block Read Stats",
				Info:   "Block reads from disk and from the buffer cache.",
				VLabel: "reads / sec",
			},
			fields: []counterField{
				{"blk_hit", "blks_hit", graph.Derive, "Cached blocks reads."},
				{"blk_read", "blks_read", graph.Derive, "Uncached block reads from disk."},
			},
		},
		{
			def: graph.Definition{
				Name:   GraphXact,
				Title:  "PostgreSQL - Transactions",
				Info:   "Committed and rolled back transactions.",
				VLabel: "xacts / sec",
			},
			fields: []counterField{
				{"commits", "xact_commit", graph.Derive, "Transactions committed."},
				{"rollbacks", "xact_rollback", graph.Derive, "Transactions rolled back."},
			},
		},
		{
			def: graph.Definition{
				Name:   GraphTupRead,
				Title:  "PostgreSQL - Tuple Reads",
				Info:   "Tuples returned by scans and fetched by index scans.",
				VLabel: "tuples / sec",
			},
			fields: []counterField{
				{"fetch", "tup_fetched", graph.Derive, "Tuples fetched by index scans."},
				{"return", "tup_returned", graph.Derive, "Tuples returned by sequential scans."},
			},
		},
		{
			def: graph.Definition{
				Name:   GraphTupWrite,
				Title:  "PostgreSQL - Tuple Writes",
				Info:   "Tuples inserted, updated and deleted.",
				VLabel: "tuples / sec",
			},
			fields: []counterField{
				{"insert", "tup_inserted", graph.Derive, "Tuples inserted."},
				{"update", "tup_updated", graph.Derive, "Tuples updated."},
				{"delete", "tup_deleted", graph.Derive, "Tuples deleted."},
			},
		},
	}
}

// Declare implements plugin.Plugin.
func (p *Plugin) Declare(c *graph.Catalog) error {
	perDB := []struct {
		def  graph.Definition
		info string
	}{
		{
			def: graph.Definition{
				Name:   GraphConnections,
				Title:  "PostgreSQL - Active Connections",
				Info:   "Active connections to the server, per database.",
				VLabel: "connections",
			},
			info: "Active connections to all databases.",
		},
		{
			def: graph.Definition{
				Name:   GraphDiskSpace,
				Title:  "PostgreSQL - Storage Space",
				Info:   "Disk space used by the databases.",
				VLabel: "bytes",
				Args:   "--base 1024 --lower-limit 0",
			},
			info: "Disk space used by all databases.",
		},
	}
	for _, g := range perDB {
		if err := declareGraph(c, g.def); err != nil {
			return err
		}
		if err := c.DeclareField(g.def.Name, graph.Field{Name: totalField, Draw: graph.Line2, Info: g.info}); err != nil {
			return err
		}
		for _, db := range p.cfg.Databases {
			if err := c.DeclareField(g.def.Name, graph.Field{Name: db, Draw: graph.Line2}); err != nil {
				return err
			}
		}
	}
	if err := c.DeclareField(GraphConnections, graph.Field{
		Name:  maxConnectionsField,
		Label: "max",
		Draw:  graph.Line1,
		Info:  "Connection limit of the server (max_connections).",
	}); err != nil {
		return err
	}

	for _, g := range p.totalsGraphs() {
		if err := declareGraph(c, g.def); err != nil {
			return err
		}
		for _, f := range g.fields {
			field := graph.Field{Name: f.name, Kind: f.kind, Min: graph.Int(0), Draw: graph.AreaStack, Info: f.info}
			if err := c.DeclareField(g.def.Name, field); err != nil {
				return err
			}
		}
	}

	if err := declareGraph(c, graph.Definition{
		Name:   GraphUptime,
		Title:  "PostgreSQL - Uptime",
		Info:   "Time since the server started.",
		VLabel: "days",
	}); err != nil {
		return err
	}
	if err := c.DeclareField(GraphUptime, graph.Field{Name: "uptime", Draw: graph.Area}); err != nil {
		return err
	}

	if err := declareGraph(c, graph.Definition{
		Name:   GraphXlog,
		Title:  "PostgreSQL - Transaction Log",
		Info:   "Transaction log written by a primary, received and replayed by a standby.",
		VLabel: "bytes / sec",
		Args:   "--base 1024 --lower-limit 0",
	}); err != nil {
		return err
	}
	for _, f := range []graph.Field{
		{Name: "written", Info: "Transaction log written by the primary."},
		{Name: "received", Info: "Transaction log received by the standby."},
		{Name: "replayed", Info: "Transaction log replayed by the standby."},
	} {
		f.Kind, f.Min, f.Draw = graph.Derive, graph.Int(0), graph.Line2
		if err := c.DeclareField(GraphXlog, f); err != nil {
			return err
		}
	}

	if err := declareGraph(c, graph.Definition{
		Name:   GraphReplayLag,
		Title:  "PostgreSQL - Replay Lag",
		Info:   "Transaction log received by a standby but not replayed yet. Zero on a primary.",
		VLabel: "bytes",
		Args:   "--base 1024 --lower-limit 0",
	}); err != nil {
		return err
	}
	return c.DeclareField(GraphReplayLag, graph.Field{Name: "lag", Draw: graph.Area})
}

func declareGraph(c *graph.Catalog, def graph.Definition) error {
	def.Category = category
	if def.Args == "" {
		def.Args = defaultArgs
	}
	return c.DeclareGraph(def)
}

// Open implements plugin.Plugin.
func (p *Plugin) Open(ctx context.Context) (plugin.Session, error) {
	b, err := p.open(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		p.logServer(ctx, b)
	}
	if len(p.cfg.Databases) > 0 {
		p.checkDatabases(ctx, b)
	}
	return &session{plugin: p, backend: b}, nil
}

func (p *Plugin) logServer(ctx context.Context, b Backend) {
	attrs := []any{"database", p.cfg.Database}
	if v, err := b.Version(ctx); err == nil {
		attrs = append(attrs, "version", v)
	}
	if t, err := b.StartTime(ctx); err == nil {
		attrs = append(attrs, "started", t.UTC().Format(time.RFC3339))
	}
	p.logger.Debug("connected to postgresql", attrs...)
}

// checkDatabases warns about listed databases the server does not have.
// Their fields report no data.
func (p *Plugin) checkDatabases(ctx context.Context, b Backend) {
	names, err := b.Databases(ctx)
	if err != nil {
		p.logger.Warn("listing databases failed", "error", err)
		return
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, db := range p.cfg.Databases {
		if !have[db] {
			p.logger.Warn("listed database not found on server", "database", db)
		}
	}
}

type session struct {
	plugin  *Plugin
	backend Backend
}

func (s *session) Close() error { return s.backend.Close() }

func (s *session) Bindings() []plugin.Binding {
	connections := plugin.Query{Key: "connections", Fetch: s.backend.ConnectionStats}
	databaseStats := plugin.Query{Key: "database_stats", Fetch: s.backend.DatabaseStats}
	uptime := plugin.Query{Key: "uptime", Fetch: s.backend.Uptime}
	settings := plugin.Query{Key: "settings", Fetch: s.backend.Settings}
	xlog := plugin.Query{Key: "xlog", Fetch: s.backend.XlogStatus}
	databases := s.plugin.cfg.Databases

	bindings := []plugin.Binding{
		{
			Graph:   GraphConnections,
			Queries: []plugin.Query{connections, settings},
			Partial: true,
			Fill: func(res plugin.Results, set plugin.Setter) error {
				for _, f := range append([]string{totalField}, databases...) {
					if err := set(f, res.Get("connections", f)); err != nil {
						return err
					}
				}
				return set(maxConnectionsField, res.Get("settings", "max_connections"))
			},
		},
		{
			Graph:   GraphDiskSpace,
			Queries: []plugin.Query{databaseStats},
			Fill: func(res plugin.Results, set plugin.Setter) error {
				for _, f := range append([]string{totalField}, databases...) {
					if err := set(f, res.Get("database_stats", StatKey(f, "disk_size"))); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
	for _, g := range s.plugin.totalsGraphs() {
		fields := g.fields
		bindings = append(bindings, plugin.Binding{
			Graph:   g.def.Name,
			Queries: []plugin.Query{databaseStats},
			Fill: func(res plugin.Results, set plugin.Setter) error {
				for _, f := range fields {
					if err := set(f.name, res.Get("database_stats", StatKey(totalField, f.counter))); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	return append(bindings,
		plugin.Binding{
			Graph:   GraphUptime,
			Queries: []plugin.Query{uptime},
			Fill: func(res plugin.Results, set plugin.Setter) error {
				v, ok := res.Get("uptime", "uptime").Float()
				if !ok {
					return set("uptime", graph.NoData)
				}
				return set("uptime", graph.Number(v/secondsPerDay))
			},
		},
		plugin.Binding{
			Graph:   GraphXlog,
			Queries: []plugin.Query{xlog},
			Fill: func(res plugin.Results, set plugin.Setter) error {
				if err := set("written", res.Get("xlog", "xlog_location")); err != nil {
					return err
				}
				if err := set("received", res.Get("xlog", "xlog_receive_location")); err != nil {
					return err
				}
				return set("replayed", res.Get("xlog", "xlog_replay_location"))
			},
		},
		plugin.Binding{
			Graph:   GraphReplayLag,
			Queries: []plugin.Query{xlog},
			Fill: func(res plugin.Results, set plugin.Setter) error {
				return set("lag", replayLag(res["xlog"]))
			},
		},
	)
}

// replayLag is the received but not yet replayed log of a standby, zero on a
// primary. A standby that is not streaming has no data.
func replayLag(st plugin.Stats) graph.Value {
	if st["in_recovery"] == 0 {
		return graph.Int(0)
	}
	received, ok1 := st.Get("xlog_receive_location").Float()
	replayed, ok2 := st.Get("xlog_replay_location").Float()
	if !ok1 || !ok2 {
		return graph.NoData
	}
	return graph.Number(max(received-replayed, 0))
}
