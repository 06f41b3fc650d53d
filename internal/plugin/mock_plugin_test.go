package plugin

import (
	"context"
	"sync"

	"github.com/plexsphere/plexmon/internal/graph"
)

// mockGraph is a graph declared by mockPlugin.
type mockGraph struct {
	def    graph.Definition
	fields []string
}

// mockPlugin declares fixed graphs and hands out a mockSession.
type mockPlugin struct {
	graphs     []mockGraph
	declareErr error
	session    *mockSession
	openErr    error

	mu    sync.Mutex
	opens int
}

func (p *mockPlugin) Name() string { return "mock" }

func (p *mockPlugin) Declare(c *graph.Catalog) error {
	if p.declareErr != nil {
		return p.declareErr
	}
	for _, g := range p.graphs {
		if err := c.DeclareGraph(g.def); err != nil {
			return err
		}
		for _, f := range g.fields {
			if err := c.DeclareField(g.def.Name, graph.Field{Name: f}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *mockPlugin) Open(_ context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.session, nil
}

func (p *mockPlugin) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// mockSession returns fixed bindings and records Close calls.
type mockSession struct {
	bindings []Binding
	closeErr error

	mu     sync.Mutex
	closes int
}

func (s *mockSession) Bindings() []Binding { return s.bindings }

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *mockSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// mockQuery counts Fetch calls and returns configured results.
type mockQuery struct {
	key   string
	stats Stats
	err   error
	panic bool

	mu    sync.Mutex
	calls int
}

func (q *mockQuery) query() Query {
	return Query{Key: q.key, Fetch: q.fetch}
}

func (q *mockQuery) fetch(_ context.Context) (Stats, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	if q.panic {
		panic("boom")
	}
	if q.err != nil {
		return nil, q.err
	}
	return q.stats, nil
}

func (q *mockQuery) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// copyFill copies every sample of query into the field of the same name.
func copyFill(query string, fields ...string) func(Results, Setter) error {
	return func(res Results, set Setter) error {
		for _, f := range fields {
			if err := set(f, res.Get(query, f)); err != nil {
				return err
			}
		}
		return nil
	}
}
