package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexmon/internal/config"
	"github.com/plexsphere/plexmon/internal/plugin"
)

// Plugin invocation modes.
const (
	modeConfig = "config"
	modeFetch  = "fetch"
)

// lookupEnv reads the process environment.
var lookupEnv = os.LookupEnv

// buildFunc reads the options of a plugin and creates it.
type buildFunc func(r *config.Resolver, logger *slog.Logger) (plugin.Plugin, error)

// newPluginCommand creates the subcommand running the plugin named name.
func newPluginCommand(name, short string, aliases []string, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:       name + " [config|fetch]",
		Aliases:   aliases,
		Short:     short,
		Long:      short + ".\nWith \"config\" it writes the graph declarations, otherwise the current values.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{modeConfig, modeFetch},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := modeFetch
			if len(args) > 0 {
				mode = args[0]
			}
			if err := runPlugin(cmd, name, mode, build); err != nil {
				return fmt.Errorf("plexmon %s: %w", name, err)
			}
			return nil
		},
		SilenceUsage: true,
	}
}

func runPlugin(cmd *cobra.Command, name, mode string, build buildFunc) error {
	if mode != modeConfig && mode != modeFetch {
		return fmt.Errorf("unknown mode %q", mode)
	}

	logger := setupLogger(cmd.ErrOrStderr(), logLevel).With("plugin", name)

	r, err := newResolver(name)
	if err != nil {
		return err
	}
	runCfg, err := plugin.LoadConfig(r)
	if err != nil {
		return err
	}
	p, err := build(r, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner := plugin.NewRunner(runCfg, logger)
	if mode == modeConfig {
		return runner.Describe(ctx, cmd.OutOrStdout(), p)
	}
	return runner.Fetch(ctx, cmd.OutOrStdout(), p)
}

// newResolver layers the option sources of a plugin: --env overrides, the
// environment, then the plugin's section of the configuration file. A missing
// file is only an error when --config names a non-default path.
func newResolver(name string) (*config.Resolver, error) {
	overrides, err := parseOverrides(envOverrides)
	if err != nil {
		return nil, err
	}
	if outputFormat != "" {
		overrides[plugin.KeyOutputFormat] = outputFormat
	}
	file, err := config.ParseFile(cfgFile, cfgFile == config.DefaultFile)
	if err != nil {
		return nil, err
	}
	return config.NewResolver(overrides, config.Env{LookupEnv: lookupEnv}, file.Section(name)), nil
}

// parseOverrides turns key=value pairs into a source.
func parseOverrides(pairs []string) (config.Map, error) {
	m := make(config.Map, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, want key=value", pair)
		}
		m[key] = value
	}
	return m, nil
}
