package preflight

import (
	"context"

	"bindery/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Calibre library", cfg.Paths.CalibreLibraryDir),
		CheckLibraryDatabase(cfg),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	return results
}
