// Package emit renders a graph catalog for the monitoring host.
package emit

import (
	"fmt"
	"io"

	"github.com/plexsphere/plexmon/internal/graph"
)

// Output formats.
const (
	FormatMunin      = "munin"
	FormatPrometheus = "prometheus"
)

// Emitter writes graph declarations and graph values.
type Emitter interface {
	// Describe writes the declarations of every graph in the catalog.
	Describe(w io.Writer, c *graph.Catalog) error
	// Values writes one value per declared field, no data included.
	Values(w io.Writer, c *graph.Catalog) error
}

// New returns the Emitter for format.
func New(format string) (Emitter, error) {
	switch format {
	case FormatMunin, "":
		return Munin{}, nil
	case FormatPrometheus:
		return Prometheus{}, nil
	default:
		return nil, fmt.Errorf("emit: unknown format %q", format)
	}
}
