// Package rewrite extracts translatable text from one file and annotates the
// matched elements with translation keys.
package rewrite

import (
	"slices"
	"strings"

	"lingotags/internal/classify"
	"lingotags/internal/keys"
	"lingotags/internal/patterns"
	"lingotags/internal/textutil"
)

// Match is one extracted element.
type Match struct {
	Key     string `json:"key"`
	Tag     string `json:"tag"`
	Content string `json:"content"`
	Dynamic bool   `json:"dynamic,omitempty"`
}

// Result is the outcome of processing one file.
type Result struct {
	OriginalText string
	ModifiedText string
	Matches      []Match
	// Duplicates lists pre-existing keys that appeared on more than one
	// element of the file. Only the first element is reported as a match.
	Duplicates []string
}

// Changed reports whether the rewrite altered the text.
func (r *Result) Changed() bool {
	return r.ModifiedText != r.OriginalText
}

// Engine applies a pattern catalog to file text, issuing keys from a shared
// allocator.
type Engine struct {
	catalog *patterns.Catalog
	keys    *keys.Allocator
}

// NewEngine creates an engine. The allocator is shared across every file of
// a batch.
func NewEngine(catalog *patterns.Catalog, alloc *keys.Allocator) *Engine {
	return &Engine{catalog: catalog, keys: alloc}
}

type insertion struct {
	at   int
	text string
}

// Process runs both passes over text. Already-annotated elements are
// reported with their existing key and left untouched; qualifying
// unannotated elements receive a new key in their opening tag.
// Blank input is returned unchanged without matching.
func (e *Engine) Process(text string) (*Result, error) {
	res := &Result{OriginalText: text, ModifiedText: text}
	if textutil.IsBlank(text) {
		return res, nil
	}

	elements, err := e.elements(text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, el := range elements {
		kind, key := annotationOf(el.Raw)
		if kind != annotated {
			continue
		}
		c := classify.Classify(el.Raw)
		if !c.Accept {
			continue
		}
		if seen[key] {
			res.Duplicates = append(res.Duplicates, key)
			continue
		}
		seen[key] = true
		res.Matches = append(res.Matches, Match{Key: key, Tag: c.Tag, Content: c.Content, Dynamic: c.Dynamic})
	}

	var edits []insertion
	for _, el := range elements {
		if kind, _ := annotationOf(el.Raw); kind != unannotated {
			continue
		}
		c := classify.Classify(el.Raw)
		if !c.Accept {
			continue
		}
		key := e.keys.Issue()
		edits = append(edits, insertion{at: el.Start + insertionOffset(el.Raw), text: annotationText(key)})
		res.Matches = append(res.Matches, Match{Key: key, Tag: c.Tag, Content: c.Content, Dynamic: c.Dynamic})
	}

	res.ModifiedText = apply(text, edits)
	return res, nil
}

// elements collects matches of every pattern in catalog order. An opening
// tag matched by more than one pattern is kept once, for the first pattern,
// rather than once per pattern, so each element gets a single key.
func (e *Engine) elements(text string) ([]patterns.Element, error) {
	var out []patterns.Element
	claimed := make(map[int]bool)
	for _, p := range e.catalog.Patterns() {
		found, err := p.FindAll(text)
		if err != nil {
			return nil, err
		}
		for _, el := range found {
			if claimed[el.Start] {
				continue
			}
			claimed[el.Start] = true
			out = append(out, el)
		}
	}
	return out, nil
}

// apply performs the insertions against the original offsets.
func apply(text string, edits []insertion) string {
	if len(edits) == 0 {
		return text
	}
	sorted := slices.Clone(edits)
	slices.SortFunc(sorted, func(a, b insertion) int { return a.at - b.at })

	var b strings.Builder
	b.Grow(len(text) + len(sorted)*24)
	prev := 0
	for _, ed := range sorted {
		b.WriteString(text[prev:ed.at])
		b.WriteString(ed.text)
		prev = ed.at
	}
	b.WriteString(text[prev:])
	return b.String()
}
