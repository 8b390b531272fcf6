package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"lingotags/internal/filewalker"
	"lingotags/internal/keys"
	"lingotags/internal/manifest"
	"lingotags/internal/patterns"
	"lingotags/internal/rewrite"
	"lingotags/internal/store"

	"github.com/google/go-cmp/cmp"
)

type fakeRegistry struct {
	max      int64
	upserted []store.Entry
}

func (f *fakeRegistry) MaxKey(context.Context) (int64, error) { return f.max, nil }

func (f *fakeRegistry) Upsert(_ context.Context, entries []store.Entry) (int, error) {
	f.upserted = append(f.upserted, entries...)
	return len(entries), nil
}

type fixture struct {
	work  string
	root  string
	alloc *keys.Allocator
	opts  Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	work := t.TempDir()
	root := filepath.Join(work, "web", "app")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return &fixture{
		work:  work,
		root:  root,
		alloc: keys.NewAllocator(0),
		opts: Options{
			SearchDirectory: root,
			FilePattern:     filewalker.DefaultPattern,
			OutputFile:      filepath.Join(work, "translations.json"),
			ManifestPath:    filepath.Join(work, manifest.DefaultName),
			LocalesDir:      filepath.Join(work, "locales"),
			Language:        "en",
			Workers:         2,
		},
	}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func (f *fixture) coordinator(registry KeyRegistry) *Coordinator {
	return New(f.opts, patterns.Default(), f.alloc, registry)
}

func read(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(data)
}

func TestRunRewritesAndReverts(t *testing.T) {
	f := newFixture(t)
	home := f.write(t, "page.tsx", `<h1>Welcome</h1><p>{x}</p>`)
	about := f.write(t, "about/page.html", "<p>About us</p>\n")
	empty := f.write(t, "empty.jsx", "  \n\t")

	report, err := f.coordinator(nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := read(t, about); got != `<p key="unique_key_1">About us</p>`+"\n" {
		t.Errorf("about = %q", got)
	}
	if got := read(t, home); got != `<h1 key="unique_key_2">Welcome</h1><p>{x}</p>` {
		t.Errorf("home = %q", got)
	}
	if report.Matches != 2 || report.InitialKeyCounter != 0 || report.FinalKeyCounter != 2 {
		t.Errorf("report = %+v", report)
	}
	if !report.ManifestWritten {
		t.Errorf("manifest not written")
	}

	var dict map[string][]rewrite.Match
	if err := json.Unmarshal([]byte(read(t, f.opts.OutputFile)), &dict); err != nil {
		t.Fatalf("decode dictionary: %v", err)
	}
	want := map[string][]rewrite.Match{
		"app/about/page.html": {{Key: "unique_key_1", Tag: "p", Content: "About us"}},
		"app/page.tsx":        {{Key: "unique_key_2", Tag: "h1", Content: "Welcome"}},
	}
	if diff := cmp.Diff(want, dict); diff != "" {
		t.Errorf("dictionary mismatch (-want +got):\n%s", diff)
	}

	var lang map[string]string
	if err := json.Unmarshal([]byte(read(t, filepath.Join(f.opts.LocalesDir, "en.json"))), &lang); err != nil {
		t.Fatalf("decode language file: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"unique_key_1": "About us", "unique_key_2": "Welcome"}, lang); diff != "" {
		t.Errorf("language file mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(f.opts.LocalesDir, "README.md")); err != nil {
		t.Errorf("locales README: %v", err)
	}

	rr, err := manifest.Revert(f.opts.ManifestPath, f.alloc)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if len(rr.Restored) != 2 {
		t.Errorf("restored = %v", rr.Restored)
	}
	if got := read(t, home); got != `<h1>Welcome</h1><p>{x}</p>` {
		t.Errorf("home after revert = %q", got)
	}
	if got := read(t, about); got != "<p>About us</p>\n" {
		t.Errorf("about after revert = %q", got)
	}
	if got := read(t, empty); got != "  \n\t" {
		t.Errorf("empty file touched: %q", got)
	}
	if f.alloc.Current() != 0 {
		t.Errorf("counter after revert = %d, want 0", f.alloc.Current())
	}
	if _, err := os.Stat(f.opts.ManifestPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("manifest still present: %v", err)
	}
	if _, err := manifest.Revert(f.opts.ManifestPath, f.alloc); !errors.Is(err, manifest.ErrManifestNotFound) {
		t.Errorf("second revert err = %v, want ErrManifestNotFound", err)
	}
}

func TestRunSeedsFromExistingKeys(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.tsx", `<h1 key="unique_key_7">Old</h1>`)
	f.write(t, "b.tsx", `const k = "unique_key_12"`)
	fresh := f.write(t, "c.tsx", `<p>New text</p>`)

	report, err := f.coordinator(nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.InitialKeyCounter != 12 {
		t.Fatalf("initial counter = %d, want 12", report.InitialKeyCounter)
	}
	if got := read(t, fresh); got != `<p key="unique_key_13">New text</p>` {
		t.Errorf("c.tsx = %q", got)
	}
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "page.tsx", `<div><h2>Title</h2><Button>Save</Button></div>`)

	if _, err := f.coordinator(nil).Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := read(t, p)

	report, err := New(f.opts, patterns.Default(), keys.NewAllocator(0), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := read(t, p); got != first {
		t.Errorf("second run changed file:\n%s\n%s", first, got)
	}
	if len(report.Changed) != 0 {
		t.Errorf("changed = %v, want none", report.Changed)
	}
	if report.Matches != 2 {
		t.Errorf("matches = %d, want 2", report.Matches)
	}
}

func TestRunUsesRegistry(t *testing.T) {
	f := newFixture(t)
	f.write(t, "page.tsx", `<h1>Hello</h1>`)
	reg := &fakeRegistry{max: 40}

	if _, err := f.coordinator(reg).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []store.Entry{{Key: "unique_key_41", Number: 41, File: "app/page.tsx", Tag: "h1", Content: "Hello", Language: "en"}}
	if diff := cmp.Diff(want, reg.upserted); diff != "" {
		t.Errorf("upserted mismatch (-want +got):\n%s", diff)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "page.tsx", `<h1>Hello</h1>`)
	f.opts.DryRun = true

	report, err := f.coordinator(nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Matches != 1 {
		t.Errorf("matches = %d, want 1", report.Matches)
	}
	if got := read(t, p); got != `<h1>Hello</h1>` {
		t.Errorf("file modified in dry run: %q", got)
	}
	for _, artifact := range []string{f.opts.OutputFile, f.opts.ManifestPath, f.opts.LocalesDir} {
		if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s exists after dry run", artifact)
		}
	}
}

func TestRunCollectsFileFailures(t *testing.T) {
	f := newFixture(t)
	bad := f.write(t, "bad.tsx", `<h1>Bad</h1>`)
	good := f.write(t, "good.tsx", `<h1>Good</h1>`)

	c := f.coordinator(nil)
	boom := errors.New("disk on fire")
	var reads atomic.Int32
	c.readFile = func(p string) ([]byte, error) {
		// The seeding scan reads each file once before processing begins.
		if p == bad && reads.Add(1) > 1 {
			return nil, boom
		}
		return os.ReadFile(p)
	}

	report, err := c.Run(context.Background())
	if !errors.Is(err, ErrPartialBatch) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrPartialBatch joined with cause", err)
	}
	want := []FileFailure{{Path: bad, Op: "read", Err: boom}}
	if diff := cmp.Diff(want, report.Failures, cmp.Comparer(func(a, b error) bool { return errors.Is(a, b) })); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	if got := read(t, good); !strings.Contains(got, `key="unique_key_1"`) {
		t.Errorf("good file not rewritten: %q", got)
	}
	if !report.ManifestWritten {
		t.Errorf("manifest not written for the files that succeeded")
	}
}

func TestRunCancelledCommitsManifest(t *testing.T) {
	f := newFixture(t)
	first := f.write(t, "a.tsx", `<h1>One</h1>`)
	f.write(t, "b.tsx", `<h1>Two</h1>`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := f.coordinator(nil)
	var reads atomic.Int32
	c.readFile = func(p string) ([]byte, error) {
		// Two seeding reads, then the first processing read.
		if reads.Add(1) == 3 {
			cancel()
		}
		return os.ReadFile(p)
	}

	report, err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]string{first}, report.Changed); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
	m, err := manifest.Load(f.opts.ManifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(m.Changes) != 1 || m.Changes[0].FilePath != first {
		t.Errorf("manifest changes = %+v", m.Changes)
	}
	if _, err := os.Stat(f.opts.OutputFile); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dictionary written after cancel")
	}
}

func TestRunMissingSearchDirectory(t *testing.T) {
	f := newFixture(t)
	f.opts.SearchDirectory = filepath.Join(f.work, "missing")
	_, err := f.coordinator(nil).Run(context.Background())
	if !errors.Is(err, filewalker.ErrSearchPathNotFound) {
		t.Fatalf("err = %v, want ErrSearchPathNotFound", err)
	}
}
