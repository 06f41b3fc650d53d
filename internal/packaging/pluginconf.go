package packaging

import (
	"fmt"
	"strings"
)

// GeneratePluginConf produces the munin-node plugin configuration for the
// installed plugins: one section per plugin, naming the user it runs as when
// one is configured.
func GeneratePluginConf(cfg InstallConfig) string {
	var b strings.Builder
	b.WriteString("# Written by plexmon install. Plugin options belong in\n")
	fmt.Fprintf(&b, "# %s/plugins.yaml or in env.* lines of this file.\n", cfg.ConfigDir)
	for _, name := range cfg.Plugins {
		fmt.Fprintf(&b, "\n[%s]\n", name)
		if user := cfg.Users[name]; user != "" {
			fmt.Fprintf(&b, "user %s\n", user)
		}
	}
	return b.String()
}
