package packaging

import (
	"fmt"
	"strings"
)

// GenerateDefaultConfig produces a starting plugins.yaml with an empty
// section per plugin and the shared options commented out.
func GenerateDefaultConfig(plugins []string) string {
	var b strings.Builder
	b.WriteString(`# plexmon plugin configuration
# Options in "*" apply to every plugin; a plugin section overrides them.
# Environment variables set by munin-node take precedence over this file.

"*":
  # output_format: munin
  # parallel_queries: 0
  # query_timeout: 10s
`)
	for _, name := range plugins {
		fmt.Fprintf(&b, "\n%s: {}\n", name)
	}
	return b.String()
}
