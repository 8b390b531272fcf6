// Package dictionary writes the per-file match dictionary and the flattened
// language file.
package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"lingotags/internal/fsutil"
	"lingotags/internal/rewrite"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultRootMarkers are the directory names that anchor project-relative paths.
var DefaultRootMarkers = []string{"app"}

// Output maps file paths to their matches, keeping insertion order.
type Output struct {
	files *orderedmap.OrderedMap[string, []rewrite.Match]
}

// NewOutput returns an empty output.
func NewOutput() *Output {
	return &Output{
		files: orderedmap.New[string, []rewrite.Match](orderedmap.WithDisableHTMLEscape[string, []rewrite.Match]()),
	}
}

// Add appends matches under file. A file seen before keeps its position.
func (o *Output) Add(file string, ms []rewrite.Match) {
	prev, ok := o.files.Get(file)
	if !ok {
		prev = []rewrite.Match{}
	}
	o.files.Set(file, append(prev, ms...))
}

// Paths returns the paths in insertion order.
func (o *Output) Paths() []string {
	paths := make([]string, 0, o.files.Len())
	for pair := o.files.Oldest(); pair != nil; pair = pair.Next() {
		paths = append(paths, pair.Key)
	}
	return paths
}

// Matches returns the matches recorded for file.
func (o *Output) Matches(file string) []rewrite.Match {
	ms, _ := o.files.Get(file)
	return ms
}

// Len returns the number of paths.
func (o *Output) Len() int { return o.files.Len() }

// Total returns the number of matches over all paths.
func (o *Output) Total() int {
	n := 0
	for pair := o.files.Oldest(); pair != nil; pair = pair.Next() {
		n += len(pair.Value)
	}
	return n
}

// Flatten returns key -> content over all paths, in insertion order.
func (o *Output) Flatten() *Strings {
	s := NewStrings()
	for pair := o.files.Oldest(); pair != nil; pair = pair.Next() {
		for _, m := range pair.Value {
			s.Set(m.Key, m.Content)
		}
	}
	return s
}

// Relative re-keys the output by project-relative path.
func (o *Output) Relative(markers []string) *Output {
	rel := NewOutput()
	for pair := o.files.Oldest(); pair != nil; pair = pair.Next() {
		rel.Add(RelativePath(pair.Key, markers), pair.Value)
	}
	return rel
}

// MarshalJSON encodes the output as an object in insertion order.
func (o *Output) MarshalJSON() ([]byte, error) {
	return o.files.MarshalJSON()
}

// RelativePath cuts an absolute path at its first segment named like one of
// markers and returns the rest slash-separated, or the base name when no
// segment matches.
func RelativePath(absPath string, markers []string) string {
	slashed := strings.ReplaceAll(absPath, `\`, "/")
	segments := strings.Split(slashed, "/")
	for i, seg := range segments {
		for _, m := range markers {
			if seg != "" && seg == m && i < len(segments)-1 {
				return strings.Join(segments[i:], "/")
			}
		}
	}
	return path.Base(slashed)
}

// WriteOutput writes the dictionary file keyed by project-relative path.
func WriteOutput(file string, o *Output, markers []string) error {
	data, err := marshalIndent(o.Relative(markers))
	if err != nil {
		return fmt.Errorf("encode dictionary: %w", err)
	}
	if err := fsutil.WriteFileAtomic(file, data); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	return nil
}

// marshalIndent pretty-prints v with HTML escaping off, so extracted markup
// text stays readable.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
