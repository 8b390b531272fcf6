package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lingotags/internal/batch"
	"lingotags/internal/config"
	"lingotags/internal/keys"
	"lingotags/internal/manifest"
	"lingotags/internal/patterns"
	"lingotags/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X lingotags/internal/cli.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool
}

// Execute runs the CLI application and exits with its status code.
func Execute() {
	os.Exit(Run(os.Args[1:]))
}

// Run executes the command line and returns the process exit status.
func Run(args []string) int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Command failed")
	}
	return ExitCode(err)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "lingotags",
		Short:         "Extract translatable text from markup and tag it with keys",
		Long:          "Scans HTML/JSX templates, annotates text-bearing elements with unique translation keys, writes a key dictionary, and records a manifest so the batch can be reverted.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(generateCmd(opts))
	rootCmd.AddCommand(revertCmd(opts))
	rootCmd.AddCommand(initCmd(opts))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func generateCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Annotate matching files with translation keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report matches without writing any file")
	return cmd
}

func revertCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revert [manifest]",
		Short: "Restore every file touched by the last batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runRevert(opts, path)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func setVerbosity(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// loadConfig loads the config file and anchors its relative paths at the
// working directory.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	setVerbosity(opts.verbose || cfg.Verbose)

	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("get working directory: %w", err)
	}
	return cfg.Resolve(cwd), nil
}

// buildCatalog appends configured patterns to the built-in catalog.
func buildCatalog(custom []config.Pattern) (*patterns.Catalog, error) {
	entries := make([]patterns.Pattern, 0, len(custom))
	for _, p := range custom {
		entries = append(entries, patterns.Pattern{Name: p.Name, Expr: p.Expr})
	}
	catalog, err := patterns.Default().With(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}
	return catalog, nil
}

func openRegistry(ctx context.Context, databaseURL string) (*store.Registry, error) {
	reg, err := store.NewRegistry(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := reg.EnsureSchema(ctx); err != nil {
		reg.Close()
		return nil, err
	}
	return reg, nil
}

// runGenerate handles the `generate` command.
func runGenerate(opts *rootOptions, dryRun bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	catalog, err := buildCatalog(cfg.CustomPatterns)
	if err != nil {
		return err
	}

	var registry batch.KeyRegistry
	if cfg.DatabaseURL != "" {
		reg, err := openRegistry(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer reg.Close()
		registry = reg
	}

	log.Info().
		Str("root", cfg.SearchDirectory).
		Str("pattern", cfg.FilePattern).
		Bool("dry_run", dryRun).
		Msg("Starting batch")

	coordinator := batch.New(batch.Options{
		SearchDirectory: cfg.SearchDirectory,
		FilePattern:     cfg.FilePattern,
		OutputFile:      cfg.OutputFile,
		ManifestPath:    cfg.Manifest,
		LocalesDir:      cfg.LocalesDir,
		Language:        cfg.DefaultLanguage,
		RootMarkers:     cfg.RootMarkers,
		Incremental:     cfg.IncrementalManifest,
		DryRun:          dryRun,
		Workers:         cfg.Workers,
	}, catalog, keys.NewAllocator(0), registry)

	report, err := coordinator.Run(ctx)
	if report != nil {
		log.Info().
			Int("discovered", report.Discovered).
			Int("files_with_keys", report.Output.Len()).
			Int("changed", len(report.Changed)).
			Int("matches", report.Matches).
			Int("failures", len(report.Failures)).
			Int64("key_counter", report.FinalKeyCounter).
			Msg("Batch complete")
	}
	return err
}

// runRevert handles the `revert` command.
func runRevert(opts *rootOptions, path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(opts)
	switch {
	case err == nil:
	case errors.Is(err, config.ErrConfigMissing) && path != "":
		setVerbosity(opts.verbose)
	case errors.Is(err, config.ErrConfigMissing):
		setVerbosity(opts.verbose)
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		cfg = config.Defaults().Resolve(cwd)
	default:
		return err
	}
	if path == "" {
		path = cfg.Manifest
	}

	report, err := manifest.Revert(path, keys.NewAllocator(0))
	if err != nil {
		return err
	}
	for _, f := range report.Skipped {
		log.Warn().Str("file", f).Msg("File no longer exists, skipped")
	}
	log.Info().
		Int("restored", len(report.Restored)).
		Int("skipped", len(report.Skipped)).
		Int("drifted", len(report.Drifted)).
		Int64("key_counter", report.InitialKeyCounter).
		Msg("Revert complete")

	if cfg.DatabaseURL == "" {
		return nil
	}
	reg, err := openRegistry(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("roll back key registry: %w", err)
	}
	defer reg.Close()
	removed, err := reg.DeleteAbove(ctx, report.InitialKeyCounter)
	if err != nil {
		return fmt.Errorf("roll back key registry: %w", err)
	}
	log.Info().Int64("removed", removed).Msg("Key registry rolled back")
	return nil
}
