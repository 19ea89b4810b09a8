package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bindery/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List in-flight conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing api.JobListResponse
			if err := ctx.getJSON("/api/jobs", &listing); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(listing.Jobs) == 0 {
				fmt.Fprintln(out, "No conversions in flight.")
				return nil
			}
			rows := make([][]string, 0, len(listing.Jobs))
			for _, job := range listing.Jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.BookID, 10),
					job.Title,
					job.Target,
					job.State,
					job.Backend,
					strconv.Itoa(job.Waiters),
				})
			}
			fmt.Fprintln(out, renderList(
				[]col{
					{title: "Book", numeric: true},
					{title: "Title"},
					{title: "Target"},
					{title: "State"},
					{title: "Backend"},
					{title: "Waiters", numeric: true},
				},
				rows,
			))
			return nil
		},
	}
}
