package batch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"lingotags/internal/dictionary"
	"lingotags/internal/filewalker"
	"lingotags/internal/fsutil"
	"lingotags/internal/keys"
	"lingotags/internal/manifest"
	"lingotags/internal/patterns"
	"lingotags/internal/rewrite"
	"lingotags/internal/store"
	"lingotags/internal/textutil"
	"lingotags/internal/worker"

	"github.com/rs/zerolog/log"
)

// ErrPartialBatch is returned, joined with each FileFailure, when the batch
// finished but some files could not be processed.
var ErrPartialBatch = errors.New("batch completed with file failures")

// FileFailure is a per-file error that did not stop the batch.
type FileFailure struct {
	Path string
	Op   string
	Err  error
}

func (f FileFailure) Error() string { return fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err) }

func (f FileFailure) Unwrap() error { return f.Err }

// KeyRegistry is the optional shared store of issued keys.
type KeyRegistry interface {
	MaxKey(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, entries []store.Entry) (int, error)
}

// Options configures one batch run. Paths should be absolute.
type Options struct {
	SearchDirectory string
	FilePattern     string
	OutputFile      string
	ManifestPath    string
	LocalesDir      string
	Language        string
	RootMarkers     []string
	Incremental     bool
	DryRun          bool
	Workers         int
}

// Report summarizes a batch run.
type Report struct {
	Discovered        int
	Changed           []string
	Matches           int
	InitialKeyCounter int64
	FinalKeyCounter   int64
	ManifestWritten   bool
	Output            *dictionary.Output
	Failures          []FileFailure
}

// Coordinator runs the rewrite engine over a discovered file set.
type Coordinator struct {
	opts     Options
	catalog  *patterns.Catalog
	alloc    *keys.Allocator
	registry KeyRegistry

	readFile func(string) ([]byte, error)
}

// New creates a Coordinator. registry may be nil.
func New(opts Options, catalog *patterns.Catalog, alloc *keys.Allocator, registry KeyRegistry) *Coordinator {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if len(opts.RootMarkers) == 0 {
		opts.RootMarkers = dictionary.DefaultRootMarkers
	}
	return &Coordinator{
		opts:     opts,
		catalog:  catalog,
		alloc:    alloc,
		registry: registry,
		readFile: os.ReadFile,
	}
}

// Run executes one batch. When ctx is cancelled between files the manifest
// for the files already rewritten is still committed and ctx.Err() is
// returned.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	walker, err := filewalker.NewWalker(c.opts.FilePattern, nil)
	if err != nil {
		return nil, err
	}
	files, err := walker.Walk(c.opts.SearchDirectory)
	if err != nil {
		return nil, err
	}

	if err := c.seed(ctx, files); err != nil {
		return nil, err
	}

	report := &Report{
		Discovered:        len(files),
		InitialKeyCounter: c.alloc.Current(),
		Output:            dictionary.NewOutput(),
	}
	recorder := manifest.NewRecorder(c.opts.ManifestPath, report.InitialKeyCounter, c.opts.Incremental && !c.opts.DryRun)
	engine := rewrite.NewEngine(c.catalog, c.alloc)

	var cancelled error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			cancelled = err
			log.Warn().Msg("Batch cancelled, stopping before remaining files")
			break
		}
		if f := c.processFile(engine, recorder, report, file); f != nil {
			log.Error().Err(f.Err).Str("file", file).Str("op", f.Op).Msg("File failed")
			report.Failures = append(report.Failures, *f)
		}
	}
	report.FinalKeyCounter = c.alloc.Current()

	if c.opts.DryRun {
		log.Info().Int("files", report.Output.Len()).Int("matches", report.Matches).Msg("Dry run complete, nothing written")
		return report, errors.Join(cancelled, c.partial(report))
	}

	if recorder.Len() > 0 {
		if err := recorder.Commit(); err != nil {
			return report, fmt.Errorf("commit manifest: %w", err)
		}
		report.ManifestWritten = true
		log.Info().Str("path", recorder.Path()).Int("files", recorder.Len()).Msg("Manifest written")
	}
	if cancelled != nil {
		return report, cancelled
	}

	if err := c.writeArtifacts(ctx, report.Output); err != nil {
		return report, err
	}
	return report, c.partial(report)
}

// seed sets the allocator to the highest key found in files or the registry.
// All scans finish before any key is issued.
func (c *Coordinator) seed(ctx context.Context, files []string) error {
	pool := worker.NewPool(c.opts.Workers, func(_ context.Context, file string) (int64, error) {
		data, err := c.readFile(file)
		if err != nil {
			return 0, err
		}
		return keys.ScanMax(string(data)), nil
	})

	var highest int64
	for _, job := range pool.Run(ctx, files) {
		if errors.Is(job.Err, context.Canceled) || errors.Is(job.Err, context.DeadlineExceeded) {
			return job.Err
		}
		if job.Err != nil {
			log.Warn().Err(job.Err).Str("file", job.Input).Msg("Could not scan file for existing keys")
			continue
		}
		highest = max(highest, job.Output)
	}

	if c.registry != nil {
		n, err := c.registry.MaxKey(ctx)
		if err != nil {
			return fmt.Errorf("seed from registry: %w", err)
		}
		highest = max(highest, n)
	}

	c.alloc.Seed(highest)
	log.Info().Int64("counter", c.alloc.Current()).Int("files", len(files)).Msg("Key counter seeded")
	return nil
}

func (c *Coordinator) processFile(engine *rewrite.Engine, recorder *manifest.Recorder, report *Report, file string) *FileFailure {
	log.Debug().Str("file", file).Msg("Scanning")

	data, err := c.readFile(file)
	if err != nil {
		return &FileFailure{Path: file, Op: "read", Err: err}
	}
	text := string(data)
	if textutil.IsBlank(text) {
		log.Debug().Str("file", file).Msg("Skipped empty file")
		return nil
	}

	res, err := engine.Process(text)
	if err != nil {
		return &FileFailure{Path: file, Op: "match", Err: err}
	}
	if len(res.Matches) == 0 {
		log.Debug().Str("file", file).Msg("No tags found")
		return nil
	}
	for _, m := range res.Matches {
		log.Debug().Str("file", file).Str("key", m.Key).Str("tag", m.Tag).Str("content", textutil.Truncate(m.Content, 40)).Msg("Match")
	}
	for _, dup := range res.Duplicates {
		log.Warn().Str("file", file).Str("key", dup).Msg("Duplicate key in file, keeping first occurrence")
	}

	if !c.opts.DryRun {
		if err := recorder.Record(file, res.OriginalText, res.ModifiedText); err != nil {
			return &FileFailure{Path: file, Op: "record", Err: err}
		}
		if res.Changed() {
			if err := fsutil.WriteFileAtomic(file, []byte(res.ModifiedText)); err != nil {
				return &FileFailure{Path: file, Op: "write", Err: err}
			}
			log.Debug().Str("file", file).Int("matches", len(res.Matches)).Msg("Saved changes")
		}
	}

	report.Output.Add(file, res.Matches)
	report.Matches += len(res.Matches)
	if res.Changed() {
		report.Changed = append(report.Changed, file)
	}
	return nil
}

func (c *Coordinator) writeArtifacts(ctx context.Context, out *dictionary.Output) error {
	if err := dictionary.WriteOutput(c.opts.OutputFile, out, c.opts.RootMarkers); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	log.Info().Str("path", c.opts.OutputFile).Int("files", out.Len()).Int("keys", out.Total()).Msg("Dictionary written")

	langFile := dictionary.LanguageFile(c.opts.LocalesDir, c.opts.Language)
	merged, err := dictionary.ExportTranslations(langFile, out.Flatten(), true)
	if err != nil {
		return fmt.Errorf("export translations: %w", err)
	}
	log.Info().Str("path", langFile).Int("keys", merged.Len()).Msg("Language file updated")

	created, err := dictionary.EnsureReadme(c.opts.LocalesDir, c.opts.Language)
	if err != nil {
		return fmt.Errorf("write locales readme: %w", err)
	}
	if created {
		log.Debug().Str("dir", c.opts.LocalesDir).Msg("Created locales README")
	}

	if c.registry == nil || out.Total() == 0 {
		return nil
	}
	if _, err := c.registry.Upsert(ctx, c.entries(out)); err != nil {
		return fmt.Errorf("update key registry: %w", err)
	}
	return nil
}

func (c *Coordinator) entries(out *dictionary.Output) []store.Entry {
	entries := make([]store.Entry, 0, out.Total())
	for _, file := range out.Paths() {
		rel := dictionary.RelativePath(file, c.opts.RootMarkers)
		for _, m := range out.Matches(file) {
			n, _ := keys.Number(m.Key)
			entries = append(entries, store.Entry{
				Key:      m.Key,
				Number:   n,
				File:     rel,
				Tag:      m.Tag,
				Content:  m.Content,
				Language: c.opts.Language,
			})
		}
	}
	return entries
}

func (c *Coordinator) partial(r *Report) error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := []error{ErrPartialBatch}
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}
