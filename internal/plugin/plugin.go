// Package plugin runs multigraph plugins. A Plugin declares its graphs into a
// catalog and opens a backend Session whose Bindings map backend queries onto
// the declared fields; the Runner drives one invocation from declaration to
// emitted output.
package plugin

import (
	"context"
	"errors"
	"math"

	"github.com/plexsphere/plexmon/internal/graph"
)

// ErrUnavailable reports a backend feature that cannot answer, for example an
// Asterisk module that is not loaded. Fields depending on it have no data.
var ErrUnavailable = errors.New("plugin: backend unavailable")

// Stats is the response of one backend query: named numeric samples.
type Stats map[string]float64

// Get returns the sample for key, NoData if absent or not a number.
func (s Stats) Get(key string) graph.Value {
	v, ok := s[key]
	if !ok || math.IsNaN(v) {
		return graph.NoData
	}
	return graph.Number(v)
}

// Query is one backend call. Queries sharing a Key are fetched at most once
// per invocation.
type Query struct {
	Key   string
	Fetch func(ctx context.Context) (Stats, error)
}

// Results holds the responses of the queries of a binding, keyed by Query.Key.
type Results map[string]Stats

// Get returns the sample key of query, NoData if either is missing.
func (r Results) Get(query, key string) graph.Value {
	return r[query].Get(key)
}

// Setter assigns the value of a field of the graph being filled.
type Setter func(field string, v graph.Value) error

// Binding computes the fields of one graph from the results of its queries.
// Fill is only called when every query of the binding succeeded, or, for a
// Partial binding, when at least one did; failed queries are then absent from
// Results. An error from Fill is a wiring defect and aborts the invocation.
type Binding struct {
	Graph   string
	Queries []Query
	Fill    func(res Results, set Setter) error
	Partial bool
}

// Session is a live connection to a plugin backend.
type Session interface {
	// Bindings returns the value bindings of every graph the plugin declares.
	Bindings() []Binding
	// Close releases the connection.
	Close() error
}

// Plugin is a multigraph plugin.
type Plugin interface {
	// Name returns the plugin name, used for logging and configuration sections.
	Name() string
	// Declare adds the plugin's graphs and fields to c.
	Declare(c *graph.Catalog) error
	// Open connects to the backend.
	Open(ctx context.Context) (Session, error)
}
