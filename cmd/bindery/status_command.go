package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/api"
	"bindery/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and dependency availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var status api.DaemonStatus
			if err := ctx.getJSON("/api/status", &status); err != nil {
				// Daemon unreachable: fall back to local environment checks
				// so the command still tells the user something useful.
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not reachable", colorize))
				return renderLocalChecks(cmd, ctx, colorize)
			}

			fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
			fmt.Fprintln(out, renderStatusLine("Running", boolKind(status.Running), fmt.Sprintf("pid %d", status.PID), colorize))
			fmt.Fprintln(out, renderStatusLine("Catalog DB", statusInfo, status.CatalogDBPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Artifact DB", statusInfo, status.ArtifactDBPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, fmt.Sprintf("%d", status.ActiveJobs), colorize))

			fmt.Fprintln(out, renderSectionHeader("Reconcile", colorize))
			fmt.Fprintln(out, renderStatusLine("Phase", statusInfo, status.ReconcilePhase, colorize))
			if last := status.LastReconcile; last != nil {
				detail := fmt.Sprintf("%d added, %d changed, %d removed (%d books active)",
					last.Added, last.Changed, last.Removed, last.ActiveBooks)
				fmt.Fprintln(out, renderStatusLine("Last run", statusOK, detail, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Last run", statusInfo, "never", colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
			for _, dep := range status.Dependencies {
				fmt.Fprintln(out, renderStatusLine(dep.Name, depKind(dep.Available, dep.Optional), depDetail(dep), colorize))
			}
			return nil
		},
	}
}

func renderLocalChecks(cmd *cobra.Command, ctx *commandContext, colorize bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
	for _, result := range preflight.RunAll(cmd.Context(), cfg) {
		fmt.Fprintln(out, renderStatusLine(result.Name, boolKind(result.Passed), result.Detail, colorize))
	}

	fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
	for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
		fmt.Fprintln(out, renderStatusLine(dep.Name, depKind(dep.Available, dep.Optional), dep.Detail, colorize))
	}
	return nil
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusFail
}

func depKind(available, optional bool) statusKind {
	switch {
	case available:
		return statusOK
	case optional:
		return statusWarn
	default:
		return statusFail
	}
}

func depDetail(dep api.DependencyStatus) string {
	if dep.Detail != "" {
		return dep.Detail
	}
	return dep.Description
}
