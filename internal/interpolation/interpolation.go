// Package interpolation finds template-expression spans in markup text.
//
// A span runs from a '{' to the next '}'. Spans do not nest: in "{a {b} c}"
// the first span is "{a {b}" and the trailing " c}" is left behind as a
// residual brace.
package interpolation

import (
	"regexp"
	"strings"
)

var bracePattern = regexp.MustCompile(`\{[^}]*\}`)

// Contains reports whether text holds at least one span.
func Contains(text string) bool {
	return bracePattern.MatchString(text)
}

// Strip removes every span from text.
func Strip(text string) string {
	return bracePattern.ReplaceAllString(text, "")
}

// StripResidual removes spans and any unpaired brace characters left over
// after a non-nesting strip.
func StripResidual(text string) string {
	text = Strip(text)
	return strings.NewReplacer("{", "", "}", "").Replace(text)
}
