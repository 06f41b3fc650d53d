package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexmon/internal/asterisk"
	"github.com/plexsphere/plexmon/internal/ntp"
	"github.com/plexsphere/plexmon/internal/packaging"
	"github.com/plexsphere/plexmon/internal/postgres"
)

var (
	installPlugins   []string
	installPluginDir string
	installPgUser    string
)

// pluginNames lists every plugin plexmon provides.
var pluginNames = []string{asterisk.PluginName, ntp.PluginName, postgres.PluginName}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install plexmon as Munin node plugins",
	Long: "Copy the plexmon binary into place, write a default plugin configuration,\n" +
		"link the plugins into the Munin plugin directory and restart munin-node.",
	SilenceUsage: true,
	RunE:         runInstall,
}

func init() {
	installCmd.Flags().StringSliceVar(&installPlugins, "plugins", pluginNames, "plugins to link")
	installCmd.Flags().StringVar(&installPluginDir, "plugin-dir", packaging.DefaultPluginDir, "Munin plugin directory")
	installCmd.Flags().StringVar(&installPgUser, "pg-user", "postgres", "system user the PostgreSQL plugin runs as")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd.ErrOrStderr(), logLevel)

	for _, name := range installPlugins {
		if !knownPlugin(name) {
			return fmt.Errorf("plexmon install: unknown plugin %q", name)
		}
	}
	cfg := packaging.InstallConfig{
		PluginDir: installPluginDir,
		Plugins:   installPlugins,
		Users:     map[string]string{postgres.PluginName: installPgUser},
	}

	installer := packaging.NewInstaller(cfg, packaging.NewSystemdController(), packaging.NewRootChecker(), logger)

	if err := installer.Install(); err != nil {
		return fmt.Errorf("plexmon install: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "plexmon plugins installed successfully")
	return nil
}

func knownPlugin(name string) bool {
	for _, n := range pluginNames {
		if n == name {
			return true
		}
	}
	return false
}
