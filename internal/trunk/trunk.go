// Package trunk parses trunk search expressions and classifies channel names
// against them.
//
// An expression has one of two forms:
//
//	label=pattern
//	label=pattern=min-max
//
// The pattern is a case-insensitive regular expression. In the ranged form it
// must contain a named group "num" whose captured integer must fall inside
// [min, max] for a channel to count toward the trunk.
package trunk

import (
	"fmt"
	"regexp"
	"strconv"
)

// NumGroup is the capture group holding a numeric trunk identifier.
const NumGroup = "num"

// Grammar rules, tried in order. The first two "=" separators from the right
// are structural; the label keeps any further "=".
var (
	rangedRule = regexp.MustCompile(`^(.*)=(.*)=(\d+)-(\d+)$`)
	plainRule  = regexp.MustCompile(`^(.*)=(.*)$`)
)

// ExpressionError reports a malformed trunk expression.
type ExpressionError struct {
	Expr   string
	Reason string
	Err    error
}

// Error returns the formatted error string.
func (e *ExpressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trunk: invalid expression %q: %s: %v", e.Expr, e.Reason, e.Err)
	}
	return fmt.Sprintf("trunk: invalid expression %q: %s", e.Expr, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ExpressionError) Unwrap() error { return e.Err }

// Outcome is the result of classifying one candidate.
type Outcome int

// Classification outcomes.
const (
	Unmatched Outcome = iota
	Matched
	// OutOfRange means the pattern matched but the captured identifier is
	// missing, not an integer, or outside the trunk's range.
	OutOfRange
)

// String returns a readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case OutOfRange:
		return "out-of-range"
	default:
		return "unmatched"
	}
}

// Matcher is a parsed trunk expression: a RangedMatcher or an
// UnboundedMatcher.
type Matcher interface {
	// Label returns the trunk name.
	Label() string
	// Pattern returns the compiled expression.
	Pattern() *regexp.Regexp
	// Classify classifies one channel name.
	Classify(candidate string) Outcome
}

// UnboundedMatcher counts every channel its pattern matches.
type UnboundedMatcher struct {
	label string
	re    *regexp.Regexp
}

// Label implements Matcher.
func (m *UnboundedMatcher) Label() string { return m.label }

// Pattern implements Matcher.
func (m *UnboundedMatcher) Pattern() *regexp.Regexp { return m.re }

// Classify implements Matcher.
func (m *UnboundedMatcher) Classify(candidate string) Outcome {
	if m.re.MatchString(candidate) {
		return Matched
	}
	return Unmatched
}

// RangedMatcher counts a channel only if the identifier captured by the
// "num" group lies in [Min, Max].
type RangedMatcher struct {
	label string
	re    *regexp.Regexp
	group int
	Min   int
	Max   int
}

// Label implements Matcher.
func (m *RangedMatcher) Label() string { return m.label }

// Pattern implements Matcher.
func (m *RangedMatcher) Pattern() *regexp.Regexp { return m.re }

// Classify implements Matcher.
func (m *RangedMatcher) Classify(candidate string) Outcome {
	sub := m.re.FindStringSubmatch(candidate)
	if sub == nil {
		return Unmatched
	}
	n, err := strconv.Atoi(sub[m.group])
	if err != nil || n < m.Min || n > m.Max {
		return OutOfRange
	}
	return Matched
}

// Classify classifies candidate against m.
func Classify(m Matcher, candidate string) Outcome {
	return m.Classify(candidate)
}
