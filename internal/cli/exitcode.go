package cli

import (
	"context"
	"errors"

	"lingotags/internal/batch"
	"lingotags/internal/config"
	"lingotags/internal/filewalker"
	"lingotags/internal/manifest"
)

// Process exit statuses.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitSearchPath   = 3
	ExitManifest     = 4
	ExitPartialBatch = 5
	ExitCancelled    = 130
)

// ExitCode maps an error returned by a command to its exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, config.ErrConfigMissing), errors.Is(err, config.ErrConfigInvalid):
		return ExitConfig
	case errors.Is(err, filewalker.ErrSearchPathNotFound):
		return ExitSearchPath
	case errors.Is(err, manifest.ErrManifestNotFound):
		return ExitManifest
	case errors.Is(err, batch.ErrPartialBatch):
		return ExitPartialBatch
	default:
		return ExitFailure
	}
}
