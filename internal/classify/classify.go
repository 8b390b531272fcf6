// Package classify decides which matched elements carry extractable text and
// derives their canonical display string.
package classify

import (
	"regexp"
	"strings"

	"lingotags/internal/interpolation"
	"lingotags/internal/textutil"
)

var (
	tagNamePattern = regexp.MustCompile(`<([a-zA-Z0-9_:-]+)`)
	anyTagPattern  = regexp.MustCompile(`<[^>]+>`)
)

// TagName returns the lower-cased element name that follows the first '<',
// or "" when there is none.
func TagName(raw string) string {
	m := tagNamePattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// Content returns the canonical text of an element: interpolation spans
// removed, then tags, then double quotes, then whitespace collapsed.
// The order matters: spans go first so arrow functions inside attributes
// ("{() => x}") cannot end a tag early.
func Content(raw string) string {
	s := interpolation.Strip(raw)
	s = anyTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, `"`, "")
	return textutil.CollapseSpace(s)
}

// ShouldProcess reports whether an element qualifies for extraction: its
// canonical text is non-empty, and if it contains interpolation, some static
// text survives once the interpolation is gone.
func ShouldProcess(raw string) bool {
	content := Content(raw)
	if content == "" {
		return false
	}
	if !interpolation.Contains(raw) {
		return true
	}
	return textutil.CollapseSpace(interpolation.Strip(content)) != ""
}

// OpeningTag returns raw up to and including the '>' that closes its first
// tag. Quoted values and brace expressions are skipped so that "=>" inside
// an event handler does not end the tag.
func OpeningTag(raw string) string {
	depth := 0
	var quote byte
	for i := 1; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return raw[:i+1]
		}
	}
	if i := strings.IndexByte(raw, '>'); i >= 0 {
		return raw[:i+1]
	}
	return raw
}

// Result is the classification of one element.
type Result struct {
	Tag     string
	Content string
	// Dynamic is set when the element body, not its attributes, holds interpolation.
	Dynamic bool
	Accept  bool
}

// Classify runs the full decision for one element, including the per-tag
// post-processing applied to recorded content.
func Classify(raw string) Result {
	r := Result{
		Tag:     TagName(raw),
		Dynamic: interpolation.Contains(raw[len(OpeningTag(raw)):]),
		Accept:  ShouldProcess(raw),
	}
	if !r.Accept {
		return r
	}
	r.Content = Content(raw)
	if r.Tag == "button" {
		r.Content = cleanButton(r.Content)
		r.Accept = r.Content != ""
	}
	return r
}

// cleanButton drops markup debris that icon children leave in button bodies.
func cleanButton(content string) string {
	s := strings.ReplaceAll(content, ">", "")
	s = interpolation.StripResidual(s)
	return textutil.CollapseSpace(s)
}
