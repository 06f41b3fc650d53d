// Package ntp monitors the timing of an NTP server.
package ntp

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/plexsphere/plexmon/internal/config"
)

// PluginName is the name Munin invokes the plugin under.
const PluginName = "ntpstats"

// Configuration keys.
const (
	KeyHost       = "ntphost"
	KeyPort       = "ntpport"
	KeySamples    = "ntp_samples"
	KeyTimeout    = "ntp_timeout"
	KeyVersion    = "ntp_version"
	KeySystemPeer = "ntp_system_peer"
)

// Defaults.
const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 123
	DefaultSamples = 3
	DefaultTimeout = 5 * time.Second
	DefaultVersion = 4
)

// maxSamples bounds the number of requests sent per invocation.
const maxSamples = 16

// Config holds the NTP plugin configuration.
type Config struct {
	// Host and Port address the NTP server.
	Host string
	Port int

	// Samples is the number of requests sent per invocation. Must be 1..16.
	Samples int

	// Timeout bounds each request. Default: 5s.
	Timeout time.Duration

	// Version is the NTP protocol version of the requests. Must be 2..4.
	Version int

	// SystemPeer samples the server Host is synchronised to instead of Host
	// itself. The peer is found from the reference ID of Host and queried on
	// DefaultPort. LoadConfig enables it unless ntp_system_peer is 0.
	SystemPeer bool
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Version == 0 {
		c.Version = DefaultVersion
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("ntp: config: Host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("ntp: config: Port %d out of range", c.Port)
	}
	if c.Samples < 1 || c.Samples > maxSamples {
		return fmt.Errorf("ntp: config: Samples must be between 1 and %d", maxSamples)
	}
	if c.Timeout <= 0 {
		return errors.New("ntp: config: Timeout must be positive")
	}
	if c.Version < 2 || c.Version > 4 {
		return errors.New("ntp: config: Version must be between 2 and 4")
	}
	return nil
}

// LoadConfig reads the plugin options from r.
func LoadConfig(r *config.Resolver) (Config, error) {
	cfg := Config{Host: r.String(KeyHost, DefaultHost)}
	var err error
	if cfg.Port, err = r.Int(KeyPort, DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Samples, err = r.Int(KeySamples, DefaultSamples); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = r.Duration(KeyTimeout, DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Version, err = r.Int(KeyVersion, DefaultVersion); err != nil {
		return Config{}, err
	}
	systemPeer, err := r.Int(KeySystemPeer, 1)
	if err != nil {
		return Config{}, err
	}
	if systemPeer != 0 && systemPeer != 1 {
		return Config{}, &config.Error{
			Key:   KeySystemPeer,
			Value: strconv.Itoa(systemPeer),
			Kind:  config.KindInt,
			Err:   errors.New("must be 0 or 1"),
		}
	}
	cfg.SystemPeer = systemPeer == 1
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
