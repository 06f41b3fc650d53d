// Package packaging installs plexmon as a set of Munin node plugins.
package packaging

import (
	"errors"
	"fmt"
	"strings"
)

// InstallConfig holds the configuration for installing plexmon into a Munin
// node. InstallConfig is passed as a constructor argument; no file I/O in
// this file.
type InstallConfig struct {
	// BinaryPath is the path to install the plexmon binary.
	// Default: /usr/local/bin/plexmon
	BinaryPath string

	// ConfigDir holds the plugin configuration file.
	// Default: /etc/plexmon
	ConfigDir string

	// PluginDir is the directory of enabled Munin plugins. Every plugin is
	// linked there under its own name.
	// Default: /etc/munin/plugins
	PluginDir string

	// PluginConfPath is the munin-node plugin configuration file written for
	// the plugins.
	// Default: /etc/munin/plugin-conf.d/plexmon
	PluginConfPath string

	// ServiceName is the systemd service of the Munin node.
	// Default: munin-node
	ServiceName string

	// Plugins are the plugin names to link. Required.
	Plugins []string

	// Users maps plugin names to the user munin-node runs them as. Plugins
	// without an entry run as the munin-node default user.
	Users map[string]string
}

// DefaultBinaryPath is the default path to install the plexmon binary.
const DefaultBinaryPath = "/usr/local/bin/plexmon"

// DefaultConfigDir is the default configuration directory.
const DefaultConfigDir = "/etc/plexmon"

// DefaultPluginDir is the default Munin plugin directory.
const DefaultPluginDir = "/etc/munin/plugins"

// DefaultPluginConfPath is the default munin-node plugin configuration file.
const DefaultPluginConfPath = "/etc/munin/plugin-conf.d/plexmon"

// DefaultServiceName is the default Munin node service name.
const DefaultServiceName = "munin-node"

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.PluginDir == "" {
		c.PluginDir = DefaultPluginDir
	}
	if c.PluginConfPath == "" {
		c.PluginConfPath = DefaultPluginConfPath
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.PluginDir == "" {
		return errors.New("packaging: config: PluginDir is required")
	}
	if c.PluginConfPath == "" {
		return errors.New("packaging: config: PluginConfPath is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	if len(c.Plugins) == 0 {
		return errors.New("packaging: config: Plugins is required")
	}
	for _, name := range c.Plugins {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("packaging: config: invalid plugin name %q", name)
		}
	}
	return nil
}
