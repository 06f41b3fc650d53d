// Package asterisk monitors an Asterisk PBX through its Manager Interface.
package asterisk

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/trunk"
)

// PluginName is the name Munin invokes the plugin under.
const PluginName = "asteriskstats"

// Configuration keys.
const (
	KeyHost     = "amihost"
	KeyPort     = "amiport"
	KeyUser     = "amiuser"
	KeyPassword = "amipass"
	KeyChannels = "list_channels"
	KeyCodecs   = "list_codecs"
	KeyTrunks   = "list_trunks"
	KeyTimeout  = "ami_timeout"
)

// DefaultHost is the default Manager Interface address.
const DefaultHost = "127.0.0.1"

// DefaultPort is the default Manager Interface port.
const DefaultPort = 5038

// DefaultTimeout bounds connecting and each Manager Interface request.
const DefaultTimeout = 5 * time.Second

// DefaultChannels are the channel types broken out in channel stats.
var DefaultChannels = []string{"dahdi", "zap", "sip", "iax2", "local"}

// DefaultCodecs are the codecs broken out in VoIP channel stats.
var DefaultCodecs = []string{"alaw", "ulaw", "gsm", "g729"}

// mixChannel counts DAHDI channels bridged to VoIP channels.
const mixChannel = "mix"

// otherCodec collects the channels of codecs that are not listed.
const otherCodec = "other"

// Config holds the Asterisk plugin configuration.
type Config struct {
	// Host and Port address the Manager Interface.
	Host string
	Port int

	// User and Password authenticate the Manager Interface session.
	User     string
	Password string

	// Channels lists the channel types to count, lower case. "zap" is folded
	// into "dahdi".
	Channels []string

	// Codecs lists the codecs to count, lower case.
	Codecs []string

	// Trunks are the trunk matchers. The trunk graph is only declared when
	// at least one is configured.
	Trunks []trunk.Matcher

	// Timeout bounds connecting and each request. Default: 5s.
	Timeout time.Duration
}

// ApplyDefaults sets default values for zero-valued fields and normalises the
// channel and codec lists.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if len(c.Channels) == 0 {
		c.Channels = DefaultChannels
	}
	c.Channels = normalizeChannels(c.Channels)
	if len(c.Codecs) == 0 {
		c.Codecs = DefaultCodecs
	}
	c.Codecs = normalizeNames(c.Codecs)
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("asterisk: config: Host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("asterisk: config: Port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return errors.New("asterisk: config: Timeout must be positive")
	}
	for _, ch := range c.Channels {
		if ch == mixChannel {
			return fmt.Errorf("asterisk: config: channel name %q is reserved", mixChannel)
		}
	}
	for _, codec := range c.Codecs {
		if codec == otherCodec {
			return fmt.Errorf("asterisk: config: codec name %q is reserved", otherCodec)
		}
	}
	return nil
}

// Addr returns the Manager Interface address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// hasDAHDI reports whether DAHDI channels are counted.
func (c *Config) hasDAHDI() bool {
	for _, ch := range c.Channels {
		if ch == "dahdi" {
			return true
		}
	}
	return false
}

// LoadConfig reads the plugin options from r. Malformed trunk expressions are
// configuration errors.
func LoadConfig(r *config.Resolver) (Config, error) {
	cfg := Config{
		Host:     r.String(KeyHost, DefaultHost),
		User:     r.String(KeyUser, ""),
		Password: r.String(KeyPassword, ""),
		Channels: r.List(KeyChannels, nil),
		Codecs:   r.List(KeyCodecs, nil),
	}
	var err error
	if cfg.Port, err = r.Int(KeyPort, DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = r.Duration(KeyTimeout, DefaultTimeout); err != nil {
		return Config{}, err
	}
	exprs := r.List(KeyTrunks, nil)
	if cfg.Trunks, err = trunk.ParseList(exprs); err != nil {
		raw, _ := r.Lookup(KeyTrunks)
		return Config{}, &config.Error{Key: KeyTrunks, Value: raw, Kind: config.KindList, Err: err}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalizeChannels lower-cases channel types, folds "zap" into "dahdi" and
// drops duplicates.
func normalizeChannels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ch := range normalizeNames(in) {
		if ch == "zap" {
			ch = "dahdi"
		}
		out = append(out, ch)
	}
	return normalizeNames(out)
}

func normalizeNames(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
