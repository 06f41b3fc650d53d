package plugin

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/plexsphere/plexmon/internal/config"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Format != "munin" {
		t.Errorf("Format = %q, want munin", cfg.Format)
	}
	if cfg.QueryTimeout != DefaultQueryTimeout {
		t.Errorf("QueryTimeout = %v, want %v", cfg.QueryTimeout, DefaultQueryTimeout)
	}
	if cfg.Parallel {
		t.Error("Parallel = true, want false")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Format: "graphite", QueryTimeout: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unknown format")
	}
	cfg = Config{Format: "prometheus", QueryTimeout: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for negative timeout")
	}
}

func TestLoadConfig(t *testing.T) {
	r := config.NewResolver(config.Map{
		"include_graphs":   "asterisk_calls, asterisk_channels",
		"exclude_graphs":   "asterisk_channels",
		"output_format":    "prometheus",
		"parallel_queries": "1",
		"query_timeout":    "3",
	})
	cfg, err := LoadConfig(r)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{
		Include:      []string{"asterisk_calls", "asterisk_channels"},
		Exclude:      []string{"asterisk_channels"},
		Format:       "prometheus",
		Parallel:     true,
		QueryTimeout: 3 * time.Second,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(config.NewResolver())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Include != nil || cfg.Exclude != nil {
		t.Errorf("Include/Exclude = %v/%v, want nil", cfg.Include, cfg.Exclude)
	}
	if cfg.Format != "munin" || cfg.Parallel || cfg.QueryTimeout != DefaultQueryTimeout {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := map[string]config.Map{
		"parallel not a number": {"parallel_queries": "yes"},
		"parallel out of range": {"parallel_queries": "2"},
		"bad timeout":           {"query_timeout": "soon"},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(config.NewResolver(m))
			var cfgErr *config.Error
			if !errors.As(err, &cfgErr) {
				t.Errorf("LoadConfig() error = %v, want *config.Error", err)
			}
		})
	}
	if _, err := LoadConfig(config.NewResolver(config.Map{"output_format": "xml"})); err == nil {
		t.Error("LoadConfig() = nil error, want error for unknown format")
	}
}
