package emit

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/plexsphere/plexmon/internal/graph"
)

// Munin writes the Munin multigraph plugin protocol.
type Munin struct{}

// Describe writes the "config" response.
func (Munin) Describe(w io.Writer, c *graph.Catalog) error {
	bw := bufio.NewWriter(w)
	for _, g := range c.Graphs() {
		def := g.Definition()
		fmt.Fprintf(bw, "multigraph %s\n", g.Name())
		writeAttr(bw, "graph_title", def.Title)
		writeAttr(bw, "graph_category", strings.ToLower(def.Category))
		writeAttr(bw, "graph_info", def.Info)
		writeAttr(bw, "graph_args", def.Args)
		writeAttr(bw, "graph_vlabel", def.VLabel)
		writeAttr(bw, "graph_period", def.Period)
		for _, f := range g.Fields() {
			id := graph.Identifier(f.Name)
			writeAttr(bw, id+".label", f.Label)
			writeAttr(bw, id+".type", f.Kind.String())
			writeAttr(bw, id+".draw", string(f.Draw))
			if f.Min.Valid() {
				writeAttr(bw, id+".min", f.Min.String())
			}
			writeAttr(bw, id+".info", f.Info)
		}
	}
	return bw.Flush()
}

// Values writes the "fetch" response. Fields without data are written as U.
func (Munin) Values(w io.Writer, c *graph.Catalog) error {
	bw := bufio.NewWriter(w)
	for _, g := range c.Graphs() {
		fmt.Fprintf(bw, "multigraph %s\n", g.Name())
		values := g.Values()
		for i, f := range g.Fields() {
			fmt.Fprintf(bw, "%s.value %s\n", graph.Identifier(f.Name), values[i])
		}
	}
	return bw.Flush()
}

// writeAttr skips empty attributes. Newlines would break the line protocol.
func writeAttr(w io.Writer, key, value string) {
	if value == "" {
		return
	}
	value = strings.ReplaceAll(value, "\n", " ")
	fmt.Fprintf(w, "%s %s\n", key, value)
}
