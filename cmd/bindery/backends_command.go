package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/api"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List conversion backends and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing api.BackendListResponse
			if err := ctx.getJSON("/api/backends", &listing); err != nil {
				return err
			}
			rows := make([][]string, 0, len(listing.Backends))
			for _, backend := range listing.Backends {
				availability := "available"
				if !backend.Available {
					availability = "unavailable"
					if backend.ProbeError != "" {
						availability += ": " + backend.ProbeError
					}
				}
				rows = append(rows, []string{
					backend.Name,
					strconv.Itoa(backend.Priority),
					summarizePairs(backend.Pairs),
					availability,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderList(
				[]col{
					{title: "Backend"},
					{title: "Priority", numeric: true},
					{title: "Pairs"},
					{title: "Status"},
				},
				rows,
			))
			return nil
		},
	}
}

// summarizePairs compresses a backend's pair list into "SRC->DST" entries,
// grouping targets per source so calibre's large matrix stays readable.
func summarizePairs(pairs []api.FormatPair) string {
	targets := make(map[string][]string)
	var sources []string
	for _, pair := range pairs {
		if _, seen := targets[pair.Source]; !seen {
			sources = append(sources, pair.Source)
		}
		targets[pair.Source] = append(targets[pair.Source], pair.Target)
	}
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		parts = append(parts, source+"->"+strings.Join(targets[source], "/"))
	}
	return strings.Join(parts, ", ")
}
