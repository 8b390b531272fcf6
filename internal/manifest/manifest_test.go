package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lingotags/internal/keys"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestCommitAndLoad(t *testing.T) {
	dir := t.TempDir()
	mp := filepath.Join(dir, DefaultName)
	r := NewRecorder(mp, 7, false)
	if err := r.Record("/abs/a.tsx", "<p>A</p>", `<p key="unique_key_8">A</p>`); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := os.Stat(mp); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("non-incremental recorder must not write before commit")
	}
	if err := r.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := Load(mp)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := &Manifest{
		InitialKeyCounter: 7,
		Changes: []Change{{
			FilePath:        "/abs/a.tsx",
			OriginalContent: "<p>A</p>",
			ModifiedContent: `<p key="unique_key_8">A</p>`,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyManifestEncodesChangesArray(t *testing.T) {
	dir := t.TempDir()
	mp := filepath.Join(dir, DefaultName)
	if err := NewRecorder(mp, 0, false).Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	want := "{\n  \"initialKeyCounter\": 0,\n  \"changes\": []\n}\n"
	if got := readFile(t, mp); got != want {
		t.Fatalf("manifest = %q, want %q", got, want)
	}
}

func TestIncrementalRecordFlushes(t *testing.T) {
	dir := t.TempDir()
	mp := filepath.Join(dir, DefaultName)
	r := NewRecorder(mp, 0, true)
	if err := r.Record("/abs/a.html", "a", "b"); err != nil {
		t.Fatalf("record: %v", err)
	}
	m, err := Load(mp)
	if err != nil {
		t.Fatalf("load after record: %v", err)
	}
	if len(m.Changes) != 1 || m.Changes[0].FilePath != "/abs/a.html" {
		t.Fatalf("unexpected manifest %+v", m)
	}
}

func TestRevertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")
	gone := filepath.Join(dir, "gone.html")
	origA, modA := "<h1>Hi</h1>\r\n", "<h1 key=\"unique_key_4\">Hi</h1>\r\n"
	origB, modB := "<p>Yo</p>", "<p key=\"unique_key_5\">Yo</p>"
	writeFile(t, a, modA)
	writeFile(t, b, modB)

	mp := filepath.Join(dir, DefaultName)
	r := NewRecorder(mp, 3, false)
	_ = r.Record(a, origA, modA)
	_ = r.Record(gone, "x", "y")
	_ = r.Record(b, origB, modB)
	if err := r.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	alloc := keys.NewAllocator(5)
	report, err := Revert(mp, alloc)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := readFile(t, a); got != origA {
		t.Fatalf("a = %q, want %q", got, origA)
	}
	if got := readFile(t, b); got != origB {
		t.Fatalf("b = %q, want %q", got, origB)
	}
	if alloc.Current() != 3 {
		t.Fatalf("counter = %d, want 3", alloc.Current())
	}
	if diff := cmp.Diff([]string{gone}, report.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{a, b}, report.Restored); diff != "" {
		t.Errorf("restored mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(mp); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest should be deleted, stat err = %v", err)
	}

	if _, err := Revert(mp, alloc); !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("second revert err = %v, want ErrManifestNotFound", err)
	}
}

func TestRevertReportsDrift(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	writeFile(t, a, "edited by hand")
	mp := filepath.Join(dir, DefaultName)
	r := NewRecorder(mp, 0, false)
	_ = r.Record(a, "original", "modified")
	_ = r.Commit()

	report, err := Revert(mp, nil)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if diff := cmp.Diff([]string{a}, report.Drifted); diff != "" {
		t.Errorf("drifted mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, a); got != "original" {
		t.Fatalf("a = %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("err = %v", err)
	}
}
