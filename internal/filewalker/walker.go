package filewalker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// DefaultPattern matches markup-bearing sources.
const DefaultPattern = "**/*.{html,tsx,jsx}"

// DefaultIgnoreDirs are never descended into.
var DefaultIgnoreDirs = []string{"node_modules", ".git"}

// ErrSearchPathNotFound is returned when the search root does not exist.
var ErrSearchPathNotFound = errors.New("search path not found")

// Walker discovers the files of a batch.
type Walker struct {
	pattern    string
	ignoreDirs []string
}

// NewWalker creates a Walker for a glob pattern relative to the search root.
// An empty pattern uses DefaultPattern.
func NewWalker(pattern string, ignoreDirs []string) (*Walker, error) {
	pattern = normalizePattern(pattern)
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid file pattern %q", pattern)
	}
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	return &Walker{pattern: pattern, ignoreDirs: ignoreDirs}, nil
}

// Walk returns the absolute paths of all matching files under root, sorted.
func (w *Walker) Walk(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSearchPathNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	listDirectory(root)

	matches, err := doublestar.Glob(os.DirFS(root), w.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", w.pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if w.ignored(m) {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(m)))
	}
	slices.Sort(files)

	log.Info().Int("count", len(files)).Str("root", root).Str("pattern", w.pattern).Msg("Discovered files")
	return files, nil
}

func (w *Walker) ignored(rel string) bool {
	segments := strings.Split(rel, "/")
	for _, seg := range segments[:len(segments)-1] {
		if slices.Contains(w.ignoreDirs, seg) {
			return true
		}
	}
	return false
}

// listDirectory logs the root's entries. Failures are advisory only.
func listDirectory(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warn().Err(err).Str("path", root).Msg("Error reading directory")
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	log.Debug().Str("path", root).Int("items", len(names)).Strs("entries", names).Msg("Processing directory")
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimPrefix(p, "./")
}
