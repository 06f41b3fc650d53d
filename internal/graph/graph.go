// Package graph provides the declarative model of multigraph plugins: named
// graphs, their ordered fields and the values collected for them during one
// invocation.
package graph

// Kind is the sample kind of a field.
type Kind int

// Sample kinds understood by the monitoring host.
const (
	// Gauge is an instantaneous value.
	Gauge Kind = iota
	// Derive is a counter whose rate is derived by the host. Negative deltas
	// are clamped by the field's minimum.
	Derive
	// Counter is a monotonically increasing counter that may wrap.
	Counter
	// Absolute is a counter reset on every read.
	Absolute
)

// String returns the host's name for the kind.
func (k Kind) String() string {
	switch k {
	case Gauge:
		return "GAUGE"
	case Derive:
		return "DERIVE"
	case Counter:
		return "COUNTER"
	case Absolute:
		return "ABSOLUTE"
	default:
		return "UNKNOWN"
	}
}

// IsRate reports whether the host derives a rate from the field.
func (k Kind) IsRate() bool {
	return k == Derive || k == Counter || k == Absolute
}

// Draw is the rendering style of a field.
type Draw string

// Rendering styles.
const (
	Line1     Draw = "LINE1"
	Line2     Draw = "LINE2"
	Line3     Draw = "LINE3"
	Area      Draw = "AREA"
	Stack     Draw = "STACK"
	AreaStack Draw = "AREASTACK"
)

// Definition describes a graph. Fields are declared separately through
// Catalog.DeclareField.
type Definition struct {
	// Name identifies the graph. Unique within a catalog.
	Name string

	Title    string
	Category string
	Info     string
	VLabel   string

	// Args are rendering arguments, e.g. "--base 1000 --lower-limit 0".
	Args string

	// Period is the sampling period hint: "second" or "minute".
	Period string
}

// Field describes one measured quantity of a graph.
type Field struct {
	// Name identifies the field. Unique within its graph.
	Name  string
	Label string
	Kind  Kind

	// Min is the optional lower bound. Derived rates use it to drop
	// negative deltas.
	Min Value

	Draw Draw
	Info string
}
