// Package patterns holds the ordered catalog of extractable element shapes.
//
// Each pattern captures an opening tag and the text up to the closing tag of
// the same name. Tag-name pairing relies on backreferences, which is why the
// catalog is compiled with regexp2 instead of the RE2-based standard package.
package patterns

import (
	"fmt"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Pattern is one catalog entry.
type Pattern struct {
	Name string
	Expr string

	re *regexp2.Regexp
}

// Element is one region of text matched by a pattern. Offsets are byte
// offsets into the scanned text.
type Element struct {
	Pattern string
	Start   int
	End     int
	Raw     string
}

// Catalog is an ordered list of compiled patterns.
type Catalog struct {
	patterns []Pattern
}

// defaultExprs is the built-in catalog. Adding an element type is a data
// change here and nothing else.
var defaultExprs = []struct{ name, expr string }{
	{"html", `<(h1|h2|h3|h4|h5|h6|p|li|blockquote|span|label|strong|em|a|button|small|b|i)[^>]*>([\s\S]*?)</\1>`},
	{"component", `<([A-Z][a-zA-Z]*)[^>]*>([\s\S]*?)</\1>`},
	{"card", `<Card(Title|Description|Footer)[^>]*>([\s\S]*?)</Card\1>`},
	{"alert", `<Alert(Title|Description)[^>]*>([\s\S]*?)</Alert\1>`},
	{"toast", `<Toast(Title|Description)[^>]*>([\s\S]*?)</Toast\1>`},
	{"dialog", `<Dialog(Title|Description)[^>]*>([\s\S]*?)</Dialog\1>`},
	{"tooltip", `<Tooltip(Content)[^>]*>([\s\S]*?)</Tooltip\1>`},
	{"dropdown-menu", `<DropdownMenu(Item|Trigger)[^>]*>([\s\S]*?)</DropdownMenu\1>`},
	{"tab", `<Tab(Trigger)[^>]*>([\s\S]*?)</Tab\1>`},
	{"accordion", `<Accordion(Trigger|Content)[^>]*>([\s\S]*?)</Accordion\1>`},
	{"label", `<Label[^>]*>([\s\S]*?)</Label>`},
	{"button", `<Button[^>]*>([\s\S]*?)</Button>`},
	{"breadcrumb", `<Breadcrumb(Item)[^>]*>([\s\S]*?)</Breadcrumb\1>`},
	{"badge", `<Badge[^>]*>([\s\S]*?)</Badge>`},
	{"avatar-fallback", `<AvatarFallback[^>]*>([\s\S]*?)</AvatarFallback>`},
	{"nav-link", `<NavLink[^>]*>([\s\S]*?)</NavLink>`},
	{"progress", `<Progress[^>]*>([\s\S]*?)</Progress>`},
	{"input", `<Input[^>]*>([\s\S]*?)</Input>`},
	{"select", `<Select(Item|Trigger|Content)[^>]*>([\s\S]*?)</Select\1>`},
	{"textarea", `<Textarea[^>]*>([\s\S]*?)</Textarea>`},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{}
	for _, d := range defaultExprs {
		c.patterns = append(c.patterns, mustCompile(d.name, d.expr))
	}
	return c
}

// With returns a copy of c with entries compiled and appended after the
// existing patterns.
func (c *Catalog) With(entries ...Pattern) (*Catalog, error) {
	out := &Catalog{patterns: c.Patterns()}
	for _, e := range entries {
		re, err := regexp2.Compile(e.Expr, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", e.Name, err)
		}
		out.patterns = append(out.patterns, Pattern{Name: e.Name, Expr: e.Expr, re: re})
	}
	return out, nil
}

func mustCompile(name, expr string) Pattern {
	return Pattern{Name: name, Expr: expr, re: regexp2.MustCompile(expr, regexp2.None)}
}

// Patterns returns the catalog entries in application order.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// FindAll returns the non-overlapping matches of one pattern in text, left to
// right.
func (p Pattern) FindAll(text string) ([]Element, error) {
	offsets := runeOffsets(text)
	var out []Element
	m, err := p.re.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = p.re.FindNextMatch(m) {
		start := offsets[m.Index]
		end := offsets[m.Index+m.Length]
		out = append(out, Element{Pattern: p.Name, Start: start, End: end, Raw: text[start:end]})
	}
	if err != nil {
		return nil, fmt.Errorf("match pattern %s: %w", p.Name, err)
	}
	return out, nil
}

// runeOffsets maps regexp2's rune indices to byte offsets. Invalid UTF-8
// bytes count as one rune each, matching the []rune conversion regexp2 does.
func runeOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
