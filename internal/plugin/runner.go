package plugin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/plexmon/internal/emit"
	"github.com/plexsphere/plexmon/internal/graph"
)

// Runner drives plugin invocations.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// NewRunner creates a new Runner. Config defaults are applied automatically.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	cfg.ApplyDefaults()
	return &Runner{cfg: cfg, logger: logger}
}

// Describe writes the declarations of the enabled graphs of p.
func (r *Runner) Describe(_ context.Context, w io.Writer, p Plugin) error {
	em, err := emit.New(r.cfg.Format)
	if err != nil {
		return fmt.Errorf("plugin: describe: %w", err)
	}
	rn, err := r.prepare(p)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := em.Describe(&buf, rn.catalog); err != nil {
		return fmt.Errorf("plugin: describe %s: %w", p.Name(), err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Fetch queries the backend of p and writes one value per enabled field.
// An unreachable backend or a failing query leaves the affected fields
// without data; only wiring defects make Fetch fail, in which case nothing
// is written to w.
func (r *Runner) Fetch(ctx context.Context, w io.Writer, p Plugin) error {
	em, err := emit.New(r.cfg.Format)
	if err != nil {
		return fmt.Errorf("plugin: fetch: %w", err)
	}
	rn, err := r.prepare(p)
	if err != nil {
		return err
	}

	if rn.catalog.Len() > 0 {
		if err := rn.collect(ctx, p); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := em.Values(&buf, rn.catalog); err != nil {
		return fmt.Errorf("plugin: fetch %s: %w", p.Name(), err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// prepare declares the graphs of p and drops the disabled ones.
func (r *Runner) prepare(p Plugin) (*run, error) {
	c := graph.NewCatalog()
	if err := p.Declare(c); err != nil {
		return nil, fmt.Errorf("plugin: declare %s: %w", p.Name(), err)
	}
	declared := make(map[string]bool, c.Len())
	for _, name := range c.Names() {
		declared[name] = true
	}
	c.Retain(EnabledGraphs(c.Names(), r.cfg.Include, r.cfg.Exclude))
	return &run{
		cfg:      r.cfg,
		logger:   r.logger.With("plugin", p.Name()),
		catalog:  c,
		declared: declared,
		results:  make(Results),
		failed:   make(map[string]error),
	}, nil
}

// run is the state of a single invocation.
type run struct {
	cfg      Config
	logger   *slog.Logger
	catalog  *graph.Catalog
	declared map[string]bool

	mu      sync.Mutex
	results Results
	failed  map[string]error
}

func (rn *run) collect(ctx context.Context, p Plugin) error {
	sess, err := p.Open(ctx)
	if err != nil {
		rn.logger.Warn("backend unavailable, reporting no data", "error", err)
		return nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			rn.logger.Warn("closing backend session failed", "error", err)
		}
	}()

	byGraph := make(map[string][]Binding)
	for _, b := range sess.Bindings() {
		if !rn.declared[b.Graph] {
			return fmt.Errorf("plugin: bind %s: %w: %s", p.Name(), graph.ErrUnknownGraph, b.Graph)
		}
		byGraph[b.Graph] = append(byGraph[b.Graph], b)
	}

	for _, name := range rn.catalog.Names() {
		for _, b := range byGraph[name] {
			if err := rn.fill(ctx, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// fill resolves the queries of b and assigns the graph's fields.
func (rn *run) fill(ctx context.Context, b Binding) error {
	if err := rn.resolve(ctx, b.Queries); err != nil {
		return err
	}

	res := make(Results, len(b.Queries))
	var missing error
	rn.mu.Lock()
	for _, q := range b.Queries {
		if err, ok := rn.failed[q.Key]; ok {
			missing = err
			continue
		}
		res[q.Key] = rn.results[q.Key]
	}
	rn.mu.Unlock()
	if missing != nil && (!b.Partial || len(res) == 0) {
		rn.logger.Debug("graph has no data", "graph", b.Graph, "error", missing)
		return nil
	}

	set := func(field string, v graph.Value) error {
		return rn.catalog.SetValue(b.Graph, field, v)
	}
	if err := b.Fill(res, set); err != nil {
		return fmt.Errorf("plugin: fill %s: %w", b.Graph, err)
	}
	return nil
}

// resolve fetches the queries not yet attempted in this run. Query failures
// are recorded, not returned; only cancellation of ctx is an error.
func (rn *run) resolve(ctx context.Context, queries []Query) error {
	var pending []Query
	seen := make(map[string]bool, len(queries))
	rn.mu.Lock()
	for _, q := range queries {
		_, done := rn.results[q.Key]
		_, failed := rn.failed[q.Key]
		if done || failed || seen[q.Key] {
			continue
		}
		seen[q.Key] = true
		pending = append(pending, q)
	}
	rn.mu.Unlock()

	if !rn.cfg.Parallel || len(pending) < 2 {
		for _, q := range pending {
			rn.fetch(ctx, q)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range pending {
		g.Go(func() error {
			rn.fetch(gctx, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (rn *run) fetch(ctx context.Context, q Query) {
	qctx, cancel := context.WithTimeout(ctx, rn.cfg.QueryTimeout)
	defer cancel()

	stats, err := safeQuery(qctx, q)

	rn.mu.Lock()
	defer rn.mu.Unlock()
	if err != nil {
		rn.logger.Warn("query failed", "query", q.Key, "error", err)
		rn.failed[q.Key] = err
		return
	}
	if stats == nil {
		stats = Stats{}
	}
	rn.results[q.Key] = stats
}

// safeQuery calls a query with panic recovery.
func safeQuery(ctx context.Context, q Query) (stats Stats, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("query %s panicked: %v\n%s", q.Key, v, debug.Stack())
		}
	}()
	return q.Fetch(ctx)
}
