package trunk

// Tally counts candidates per trunk label. Every label is present in the
// result, zero if nothing matched.
//
// A candidate counts toward the first trunk that classifies it Matched. If a
// trunk classifies it OutOfRange first, the candidate is dropped and counts
// toward no trunk at all.
func Tally(matchers []Matcher, candidates []string) map[string]int {
	counts := make(map[string]int, len(matchers))
	for _, m := range matchers {
		counts[m.Label()] = 0
	}
	for _, c := range candidates {
	classify:
		for _, m := range matchers {
			switch m.Classify(c) {
			case Matched:
				counts[m.Label()]++
				break classify
			case OutOfRange:
				break classify
			}
		}
	}
	return counts
}
