package plugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/emit"
)

// Framework configuration keys, shared by every plugin.
const (
	KeyIncludeGraphs   = "include_graphs"
	KeyExcludeGraphs   = "exclude_graphs"
	KeyOutputFormat    = "output_format"
	KeyParallelQueries = "parallel_queries"
	KeyQueryTimeout    = "query_timeout"
)

// DefaultQueryTimeout bounds a single backend query.
const DefaultQueryTimeout = 10 * time.Second

// Config holds the framework options of one plugin invocation.
type Config struct {
	// Include restricts the enabled graphs when non-empty.
	Include []string

	// Exclude disables graphs. It wins over Include.
	Exclude []string

	// Format selects the emitter. Default: munin.
	Format string

	// Parallel fetches the independent queries of a graph concurrently.
	Parallel bool

	// QueryTimeout bounds each backend query. Default: 10s.
	QueryTimeout time.Duration
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Format == "" {
		c.Format = emit.FormatMunin
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if _, err := emit.New(c.Format); err != nil {
		return fmt.Errorf("plugin: config: %w", err)
	}
	if c.QueryTimeout <= 0 {
		return errors.New("plugin: config: QueryTimeout must be positive")
	}
	return nil
}

// LoadConfig reads the framework options from r.
func LoadConfig(r *config.Resolver) (Config, error) {
	cfg := Config{
		Include: r.List(KeyIncludeGraphs, nil),
		Exclude: r.List(KeyExcludeGraphs, nil),
		Format:  r.String(KeyOutputFormat, emit.FormatMunin),
	}
	parallel, err := r.Int(KeyParallelQueries, 0)
	if err != nil {
		return Config{}, err
	}
	if parallel != 0 && parallel != 1 {
		return Config{}, &config.Error{
			Key:   KeyParallelQueries,
			Value: fmt.Sprint(parallel),
			Kind:  config.KindInt,
			Err:   errors.New("must be 0 or 1"),
		}
	}
	cfg.Parallel = parallel == 1
	if cfg.QueryTimeout, err = r.Duration(KeyQueryTimeout, DefaultQueryTimeout); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}
