package plugin

// EnabledGraphs returns the graphs of all that are enabled. A non-empty include
// list restricts the result to the graphs it names; exclude always wins.
// Matching is case-sensitive, unknown names are ignored and the result keeps
// the order of all.
func EnabledGraphs(all, include, exclude []string) []string {
	included := toSet(include)
	excluded := toSet(exclude)
	out := make([]string, 0, len(all))
	for _, name := range all {
		if len(included) > 0 && !included[name] {
			continue
		}
		if excluded[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
