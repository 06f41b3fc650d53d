// Package cmd implements the plexmon CLI commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexmon/internal/config"
)

var (
	cfgFile      string
	envOverrides []string
	logLevel     string
	outputFormat string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("plexmon version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "plexmon",
	Short: "plexmon runs Munin multigraph plugins",
	Long: "plexmon collects telemetry from an Asterisk PBX, an NTP server and a\n" +
		"PostgreSQL server and writes it in the Munin multigraph plugin protocol.\n" +
		"Linked or copied under a plugin name (asteriskstats, ntpstats, pgstats)\n" +
		"it behaves as that plugin.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "plugin configuration file path")
	rootCmd.PersistentFlags().StringArrayVar(&envOverrides, "env", nil, "option override as key=value (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "output format: munin or prometheus (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("plexmon version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command with the process arguments args. When the
// binary is invoked under the name of a plugin subcommand, args are run as
// that subcommand.
func Execute(args []string) error {
	rootCmd.SetArgs(commandArgs(args))
	return rootCmd.Execute()
}

// commandArgs strips the program name from args, replacing it with the
// subcommand it names, if any.
func commandArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	name := filepath.Base(args[0])
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return append([]string{name}, args[1:]...)
		}
	}
	return args[1:]
}

func setupLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
