package cmd

import (
	"log/slog"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/ntp"
	"github.com/plexsphere/plexmon/internal/plugin"
)

// ntpQuery sends NTP queries; nil uses the network.
var ntpQuery ntp.QueryFunc

func init() {
	rootCmd.AddCommand(newPluginCommand(ntp.PluginName,
		"Report NTP peer statistics of a time server",
		[]string{"ntp"}, buildNTP))
}

func buildNTP(r *config.Resolver, logger *slog.Logger) (plugin.Plugin, error) {
	cfg, err := ntp.LoadConfig(r)
	if err != nil {
		return nil, err
	}
	return ntp.New(cfg, ntpQuery, logger), nil
}
