package trunk

import (
	"regexp"
	"strconv"

	"github.com/plexsphere/plexmon/internal/graph"
)

// Parse parses one trunk expression.
func Parse(expr string) (Matcher, error) {
	if m := rangedRule.FindStringSubmatch(expr); m != nil {
		return parseRanged(expr, m[1], m[2], m[3], m[4])
	}
	if m := plainRule.FindStringSubmatch(expr); m != nil {
		label, re, err := compile(expr, m[1], m[2])
		if err != nil {
			return nil, err
		}
		return &UnboundedMatcher{label: label, re: re}, nil
	}
	return nil, &ExpressionError{Expr: expr, Reason: "expected label=pattern or label=pattern=min-max"}
}

func parseRanged(expr, label, pattern, lo, hi string) (Matcher, error) {
	label, re, err := compile(expr, label, pattern)
	if err != nil {
		return nil, err
	}
	minID, err := strconv.Atoi(lo)
	if err != nil {
		return nil, &ExpressionError{Expr: expr, Reason: "range minimum", Err: err}
	}
	maxID, err := strconv.Atoi(hi)
	if err != nil {
		return nil, &ExpressionError{Expr: expr, Reason: "range maximum", Err: err}
	}
	if minID > maxID {
		return nil, &ExpressionError{Expr: expr, Reason: "range minimum exceeds maximum"}
	}
	group := re.SubexpIndex(NumGroup)
	if group < 0 {
		return nil, &ExpressionError{Expr: expr, Reason: "range requires a (?P<num>...) group in the pattern"}
	}
	return &RangedMatcher{label: label, re: re, group: group, Min: minID, Max: maxID}, nil
}

func compile(expr, label, pattern string) (string, *regexp.Regexp, error) {
	if label == "" {
		return "", nil, &ExpressionError{Expr: expr, Reason: "empty label"}
	}
	if pattern == "" {
		return "", nil, &ExpressionError{Expr: expr, Reason: "empty pattern"}
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return "", nil, &ExpressionError{Expr: expr, Reason: "pattern", Err: err}
	}
	return label, re, nil
}

// ParseList parses every expression, stopping at the first malformed one.
// Labels that write as the same field identifier are rejected since each
// label becomes a graph field.
func ParseList(exprs []string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(exprs))
	seen := make(map[string]string, len(exprs))
	for _, expr := range exprs {
		m, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		id := graph.Identifier(m.Label())
		if prev, ok := seen[id]; ok {
			return nil, &ExpressionError{Expr: expr, Reason: "duplicate label " + strconv.Quote(m.Label()) + " (same field as " + strconv.Quote(prev) + ")"}
		}
		seen[id] = m.Label()
		out = append(out, m)
	}
	return out, nil
}
