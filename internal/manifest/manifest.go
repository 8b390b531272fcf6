// Package manifest records the file mutations of a batch and replays them in
// reverse.
//
// The manifest is a write-ahead log for one batch: the key counter value at
// batch start plus the original and modified text of every touched file.
// Reverting restores every original, resets the counter, and deletes the
// manifest, so a manifest can be replayed exactly once.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"lingotags/internal/fsutil"
	"lingotags/internal/keys"

	"github.com/rs/zerolog/log"
)

// DefaultName is the manifest file name used when none is configured.
const DefaultName = "lingotags-manifest.json"

// ErrManifestNotFound is returned by Load and Revert when no manifest exists.
var ErrManifestNotFound = errors.New("manifest not found")

// Change is one touched file.
type Change struct {
	FilePath        string `json:"filePath"`
	OriginalContent string `json:"originalContent"`
	ModifiedContent string `json:"modifiedContent"`
}

// Manifest is the persisted form.
type Manifest struct {
	InitialKeyCounter int64    `json:"initialKeyCounter"`
	Changes           []Change `json:"changes"`
}

// Recorder accumulates changes during a batch.
type Recorder struct {
	path        string
	incremental bool

	mu       sync.Mutex
	manifest Manifest
}

// NewRecorder starts a manifest for a batch whose counter began at initial.
// With incremental set, every Record rewrites the manifest file before
// returning.
func NewRecorder(path string, initial int64, incremental bool) *Recorder {
	return &Recorder{
		path:        path,
		incremental: incremental,
		manifest:    Manifest{InitialKeyCounter: initial, Changes: []Change{}},
	}
}

// Path returns the manifest file path.
func (r *Recorder) Path() string { return r.path }

// Record adds one file. Call it before the modified text reaches disk.
func (r *Recorder) Record(filePath, original, modified string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.manifest.Changes = append(r.manifest.Changes, Change{
		FilePath:        filePath,
		OriginalContent: original,
		ModifiedContent: modified,
	})
	if !r.incremental {
		return nil
	}
	return write(r.path, r.manifest)
}

// Len returns the number of recorded files.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.manifest.Changes)
}

// Commit writes the manifest in a single atomic replace.
func (r *Recorder) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return write(r.path, r.manifest)
}

func write(path string, m Manifest) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// RevertReport summarizes a replay.
type RevertReport struct {
	InitialKeyCounter int64
	Restored          []string
	// Skipped lists recorded files that no longer exist.
	Skipped []string
	// Drifted lists restored files whose content had changed since the batch.
	Drifted []string
}

// Revert restores every recorded file to its original content, resets alloc
// to the recorded initial counter, and deletes the manifest. If a restore
// fails the manifest is kept so the revert can be retried.
func Revert(path string, alloc *keys.Allocator) (*RevertReport, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}

	report := &RevertReport{InitialKeyCounter: m.InitialKeyCounter}
	for _, c := range m.Changes {
		current, err := os.ReadFile(c.FilePath)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("file", c.FilePath).Msg("Recorded file no longer exists, skipping")
			report.Skipped = append(report.Skipped, c.FilePath)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read %s: %w", c.FilePath, err)
		}
		if string(current) != c.ModifiedContent {
			log.Warn().Str("file", c.FilePath).Msg("File changed since the batch, restoring original anyway")
			report.Drifted = append(report.Drifted, c.FilePath)
		}
		if err := fsutil.WriteFileAtomic(c.FilePath, []byte(c.OriginalContent)); err != nil {
			return report, fmt.Errorf("restore %s: %w", c.FilePath, err)
		}
		report.Restored = append(report.Restored, c.FilePath)
	}

	if alloc != nil {
		alloc.Reset(m.InitialKeyCounter)
	}
	if err := os.Remove(path); err != nil {
		return report, fmt.Errorf("delete manifest: %w", err)
	}
	return report, nil
}
