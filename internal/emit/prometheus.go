package emit

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/plexsphere/plexmon/internal/graph"
)

// Prometheus writes the Prometheus text exposition format. Each field becomes
// one metric family named <graph>_<field>, with the field part written the
// same way Munin writes it; rate kinds are counters, the rest gauges. Fields
// without data are exposed as NaN. Values are written sorted by metric name,
// not in declaration order.
type Prometheus struct{}

type sample struct {
	desc  *prometheus.Desc
	vt    prometheus.ValueType
	value float64
}

// catalogCollector exposes a catalog snapshot as a prometheus.Collector.
type catalogCollector struct {
	samples []sample
}

func newCatalogCollector(c *graph.Catalog) *catalogCollector {
	cc := &catalogCollector{}
	for _, g := range c.Graphs() {
		values := g.Values()
		for i, f := range g.Fields() {
			v, ok := values[i].Float()
			if !ok {
				v = math.NaN()
			}
			cc.samples = append(cc.samples, sample{
				desc:  prometheus.NewDesc(metricName(g.Name(), f.Name), metricHelp(g, f), nil, nil),
				vt:    valueType(f.Kind),
				value: v,
			})
		}
	}
	return cc
}

// Describe implements prometheus.Collector.
func (cc *catalogCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range cc.samples {
		ch <- s.desc
	}
}

// Collect implements prometheus.Collector.
func (cc *catalogCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range cc.samples {
		ch <- prometheus.MustNewConstMetric(s.desc, s.vt, s.value)
	}
}

// Describe writes HELP and TYPE lines for every field.
func (Prometheus) Describe(w io.Writer, c *graph.Catalog) error {
	bw := bufio.NewWriter(w)
	for _, g := range c.Graphs() {
		for _, f := range g.Fields() {
			name := metricName(g.Name(), f.Name)
			typ := "gauge"
			if valueType(f.Kind) == prometheus.CounterValue {
				typ = "counter"
			}
			fmt.Fprintf(bw, "# HELP %s %s\n", name, escapeHelp(metricHelp(g, f)))
			fmt.Fprintf(bw, "# TYPE %s %s\n", name, typ)
		}
	}
	return bw.Flush()
}

// Values gathers the catalog through a private registry and encodes it.
func (Prometheus) Values(w io.Writer, c *graph.Catalog) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(newCatalogCollector(c)); err != nil {
		return fmt.Errorf("emit: prometheus: register: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("emit: prometheus: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("emit: prometheus: encode: %w", err)
		}
	}
	return nil
}

func metricName(graphName, field string) string {
	return graph.Identifier(graphName) + "_" + graph.Identifier(field)
}

func metricHelp(g *graph.Graph, f graph.Field) string {
	if f.Info != "" {
		return f.Info
	}
	title := g.Definition().Title
	if title == "" {
		title = g.Name()
	}
	return title + ": " + f.Label
}

func valueType(k graph.Kind) prometheus.ValueType {
	if k.IsRate() {
		return prometheus.CounterValue
	}
	return prometheus.GaugeValue
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
