package cmd

import (
	"log/slog"

	"github.com/plexsphere/plexmon/internal/asterisk"
	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/plugin"
)

// asteriskOpener connects the Asterisk plugin to its backend.
var asteriskOpener asterisk.Opener = asterisk.Connect

func init() {
	rootCmd.AddCommand(newPluginCommand(asterisk.PluginName,
		"Report Asterisk PBX statistics from the Manager Interface",
		[]string{"asterisk"}, buildAsterisk))
}

func buildAsterisk(r *config.Resolver, logger *slog.Logger) (plugin.Plugin, error) {
	cfg, err := asterisk.LoadConfig(r)
	if err != nil {
		return nil, err
	}
	return asterisk.New(cfg, asteriskOpener, logger), nil
}
