package rewrite

import (
	"regexp"

	"lingotags/internal/classify"
)

// Attribute is the canonical key annotation written into opening tags.
const Attribute = "key"

type annotationKind int

const (
	unannotated annotationKind = iota
	// annotated: key="..." or key='...'; the value is reused verbatim.
	annotated
	// expression: key={...} (a framework list key) or an empty key="".
	// Never touched.
	expression
)

var (
	keyStringAttr = regexp.MustCompile(`(?:^|\s)` + Attribute + `\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	keyExprAttr   = regexp.MustCompile(`(?:^|\s)` + Attribute + `\s*=\s*\{`)
	tagNameRun    = regexp.MustCompile(`^<[^\s/>]+`)
)

// annotationOf inspects the opening tag of an element.
func annotationOf(raw string) (annotationKind, string) {
	open := classify.OpeningTag(raw)
	if m := keyStringAttr.FindStringSubmatch(open); m != nil {
		value := m[1] + m[2]
		if value == "" {
			return expression, ""
		}
		return annotated, value
	}
	if keyExprAttr.MatchString(open) {
		return expression, ""
	}
	return unannotated, ""
}

// insertionOffset is where the annotation goes: right after the tag name.
func insertionOffset(raw string) int {
	return len(tagNameRun.FindString(raw))
}

func annotationText(key string) string {
	return " " + Attribute + `="` + key + `"`
}
