package main

import (
	"context"
	"log/slog"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/preflight"
)

// runPreflight validates the environment before the daemon starts. Directory
// and database failures are fatal; a missing optional conversion binary only
// warns, since its backend will simply probe unavailable.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) bool {
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("prepare directories", logging.Error(err))
		return false
	}

	ok := true
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		ok = false
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
		if dep.Available {
			continue
		}
		if dep.Optional {
			logger.Warn("optional binary missing",
				logging.String("binary", dep.Name),
				logging.String("detail", dep.Detail))
			continue
		}
		logger.Warn("required binary missing, conversions will fail",
			logging.String("binary", dep.Name),
			logging.String("detail", dep.Detail))
	}

	return ok
}
