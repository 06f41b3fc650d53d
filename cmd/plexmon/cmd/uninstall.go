package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexmon/internal/packaging"
)

var (
	purge              bool
	uninstallPluginDir string
)

var uninstallCmd = &cobra.Command{
	Use:          "uninstall",
	Short:        "Remove the plexmon Munin node plugins",
	SilenceUsage: true,
	RunE:         runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&purge, "purge", false, "also remove the configuration directory")
	uninstallCmd.Flags().StringVar(&uninstallPluginDir, "plugin-dir", packaging.DefaultPluginDir, "Munin plugin directory")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd.ErrOrStderr(), logLevel)

	cfg := packaging.InstallConfig{PluginDir: uninstallPluginDir, Plugins: pluginNames}
	installer := packaging.NewInstaller(cfg, packaging.NewSystemdController(), packaging.NewRootChecker(), logger)

	if err := installer.Uninstall(purge); err != nil {
		return fmt.Errorf("plexmon uninstall: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "plexmon plugins uninstalled successfully")
	return nil
}
