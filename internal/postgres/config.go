// Package postgres monitors a PostgreSQL server through its statistics views.
package postgres

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/graph"
)

// PluginName is the name Munin invokes the plugin under.
const PluginName = "pgstats"

// Configuration keys.
const (
	KeyHost      = "pghost"
	KeyPort      = "pgport"
	KeyDatabase  = "pgdbname"
	KeyUser      = "pguser"
	KeyPassword  = "pgpass"
	KeySSLMode   = "pgsslmode"
	KeyDatabases = "list_databases"
	KeyTimeout   = "pg_timeout"
)

// Defaults.
const (
	DefaultPort     = 5432
	DefaultDatabase = "postgres"
	DefaultSSLMode  = "disable"
	DefaultTimeout  = 5 * time.Second
)

// totalField is the field holding the sum over all databases.
const totalField = "total"

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Config holds the PostgreSQL plugin configuration.
type Config struct {
	// Host is a host name, an address or a Unix socket directory. Empty
	// leaves the choice to the driver.
	Host string
	Port int

	// Database is the database connected to. Default: postgres.
	Database string

	User     string
	Password string

	// SSLMode is a libpq sslmode. Default: disable.
	SSLMode string

	// Databases are broken out per field in the connection and disk space
	// graphs. Totals are always reported.
	Databases []string

	// Timeout bounds connecting. Default: 5s.
	Timeout time.Duration
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.SSLMode == "" {
		c.SSLMode = DefaultSSLMode
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("postgres: config: Port %d out of range", c.Port)
	}
	if !sslModes[c.SSLMode] {
		return fmt.Errorf("postgres: config: unknown SSLMode %q", c.SSLMode)
	}
	if c.Timeout <= 0 {
		return errors.New("postgres: config: Timeout must be positive")
	}
	seen := make(map[string]string, len(c.Databases))
	for _, db := range c.Databases {
		id := graph.Identifier(db)
		if id == totalField || id == maxConnectionsField {
			return fmt.Errorf("postgres: config: database name %q is reserved", db)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("postgres: config: database %q listed twice (as %q)", db, prev)
		}
		seen[id] = db
	}
	return nil
}

// DSN returns the libpq connection string.
func (c *Config) DSN() string {
	params := []struct{ key, value string }{
		{"host", c.Host},
		{"port", strconv.Itoa(c.Port)},
		{"dbname", c.Database},
		{"user", c.User},
		{"password", c.Password},
		{"sslmode", c.SSLMode},
		{"connect_timeout", strconv.Itoa(int(math.Ceil(c.Timeout.Seconds())))},
	}
	var parts []string
	for _, p := range params {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSN(p.value))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a connection string value when it is not a plain token.
func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// LoadConfig reads the plugin options from r.
func LoadConfig(r *config.Resolver) (Config, error) {
	cfg := Config{
		Host:      r.String(KeyHost, ""),
		Database:  r.String(KeyDatabase, DefaultDatabase),
		User:      r.String(KeyUser, ""),
		Password:  r.String(KeyPassword, ""),
		SSLMode:   r.String(KeySSLMode, DefaultSSLMode),
		Databases: r.List(KeyDatabases, nil),
	}
	var err error
	if cfg.Port, err = r.Int(KeyPort, DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = r.Duration(KeyTimeout, DefaultTimeout); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
