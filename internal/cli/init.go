package cli

import (
	"errors"
	"fmt"
	"strings"

	"lingotags/internal/config"
	"lingotags/internal/fsutil"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func initCmd(opts *rootOptions) *cobra.Command {
	var (
		defaults bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Create a configuration file interactively.

Examples:
  # Answer a few questions
  lingotags init

  # Write the defaults without prompting
  lingotags init --defaults

  # Replace an existing file without confirmation
  lingotags init --defaults --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts.configPath, defaults, force)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Write default values without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without confirmation")
	return cmd
}

func runInit(cmd *cobra.Command, path string, defaults, force bool) error {
	exists, err := fsutil.Exists(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}

	if exists && !force {
		if defaults {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		overwrite := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
			Affirmative("Overwrite").
			Negative("Keep").
			Value(&overwrite).
			Run()
		if errors.Is(err, huh.ErrUserAborted) || (err == nil && !overwrite) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	cfg := config.Wizard()
	if !defaults {
		if err := runInitForm(&cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			return err
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
	return nil
}

func runInitForm(cfg *config.Config) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Search directory").
				Description("Directory scanned for markup files").
				Value(&cfg.SearchDirectory).
				Validate(minLength("search directory")),

			huh.NewInput().
				Title("Output file").
				Description("Dictionary of extracted keys").
				Value(&cfg.OutputFile).
				Validate(minLength("output file")),

			huh.NewInput().
				Title("File pattern").
				Description("Glob relative to the search directory").
				Value(&cfg.FilePattern),

			huh.NewConfirm().
				Title("Verbose logging").
				Value(&cfg.Verbose),
		),
	)
	return form.Run()
}

func minLength(field string) func(string) error {
	return func(s string) error {
		if len(strings.TrimSpace(s)) < 3 {
			return fmt.Errorf("%s must be at least 3 characters", field)
		}
		return nil
	}
}
