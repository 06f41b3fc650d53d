package cmd

import (
	"log/slog"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/plugin"
	"github.com/plexsphere/plexmon/internal/postgres"
)

// postgresOpener connects the PostgreSQL plugin to its server.
var postgresOpener postgres.Opener = postgres.Connect

func init() {
	rootCmd.AddCommand(newPluginCommand(postgres.PluginName,
		"Report PostgreSQL server statistics",
		[]string{"postgres"}, buildPostgres))
}

func buildPostgres(r *config.Resolver, logger *slog.Logger) (plugin.Plugin, error) {
	cfg, err := postgres.LoadConfig(r)
	if err != nil {
		return nil, err
	}
	return postgres.New(cfg, postgresOpener, logger), nil
}
