package graph

import (
	"errors"
	"fmt"
)

// Declaration and assignment errors. They signal broken plugin wiring and are
// never expected at runtime.
var (
	ErrDuplicateGraph = errors.New("graph: duplicate graph")
	ErrDuplicateField = errors.New("graph: duplicate field")
	ErrUnknownGraph   = errors.New("graph: unknown graph")
	ErrUnknownField   = errors.New("graph: unknown field")
)

// Graph is a declared graph with its fields and the values set for them.
type Graph struct {
	def    Definition
	fields []Field
	index  map[string]int
	ids    map[string]string
	values []Value
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.def.Name }

// Definition returns the graph definition.
func (g *Graph) Definition() Definition { return g.def }

// Fields returns the fields in declaration order.
func (g *Graph) Fields() []Field {
	out := make([]Field, len(g.fields))
	copy(out, g.fields)
	return out
}

// HasField reports whether a field is declared.
func (g *Graph) HasField(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Value returns the value set for a field, NoData if none was set.
func (g *Graph) Value(field string) (Value, error) {
	i, ok := g.index[field]
	if !ok {
		return NoData, fmt.Errorf("%w: %s.%s", ErrUnknownField, g.def.Name, field)
	}
	return g.values[i], nil
}

// Values returns the values in field declaration order.
func (g *Graph) Values() []Value {
	out := make([]Value, len(g.values))
	copy(out, g.values)
	return out
}

// Catalog is an ordered registry of graphs. It is not safe for concurrent use.
type Catalog struct {
	order  []*Graph
	graphs map[string]*Graph
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{graphs: make(map[string]*Graph)}
}

// DeclareGraph registers a graph definition.
func (c *Catalog) DeclareGraph(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("graph: declare: empty graph name")
	}
	if _, ok := c.graphs[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGraph, def.Name)
	}
	g := &Graph{def: def, index: make(map[string]int), ids: make(map[string]string)}
	c.graphs[def.Name] = g
	c.order = append(c.order, g)
	return nil
}

// DeclareField appends a field to a declared graph. Two fields whose
// Identifier forms are equal are duplicates.
func (c *Catalog) DeclareField(graphName string, f Field) error {
	g, ok := c.graphs[graphName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGraph, graphName)
	}
	if f.Name == "" {
		return fmt.Errorf("graph: declare %s: empty field name", graphName)
	}
	if _, ok := g.index[f.Name]; ok {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateField, graphName, f.Name)
	}
	id := Identifier(f.Name)
	if other, ok := g.ids[id]; ok {
		return fmt.Errorf("%w: %s.%s writes as %s like %s", ErrDuplicateField, graphName, f.Name, id, other)
	}
	if f.Label == "" {
		f.Label = f.Name
	}
	g.index[f.Name] = len(g.fields)
	g.ids[id] = f.Name
	g.fields = append(g.fields, f)
	g.values = append(g.values, NoData)
	return nil
}

// HasGraph reports whether a graph is declared.
func (c *Catalog) HasGraph(name string) bool {
	_, ok := c.graphs[name]
	return ok
}

// Graph looks up a graph by name.
func (c *Catalog) Graph(name string) (*Graph, bool) {
	g, ok := c.graphs[name]
	return g, ok
}

// Graphs returns the graphs in declaration order.
func (c *Catalog) Graphs() []*Graph {
	out := make([]*Graph, len(c.order))
	copy(out, c.order)
	return out
}

// Names returns the graph names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	for i, g := range c.order {
		names[i] = g.def.Name
	}
	return names
}

// Len returns the number of declared graphs.
func (c *Catalog) Len() int { return len(c.order) }

// Retain drops every graph whose name is not in names. Order is preserved.
func (c *Catalog) Retain(names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	kept := c.order[:0]
	for _, g := range c.order {
		if keep[g.def.Name] {
			kept = append(kept, g)
			continue
		}
		delete(c.graphs, g.def.Name)
	}
	c.order = kept
}

// SetValue stores the value of a declared field.
func (c *Catalog) SetValue(graphName, field string, v Value) error {
	g, ok := c.graphs[graphName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGraph, graphName)
	}
	i, ok := g.index[field]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, graphName, field)
	}
	g.values[i] = v
	return nil
}
