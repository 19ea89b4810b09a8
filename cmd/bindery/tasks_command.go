package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/api"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List scheduled maintenance tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing api.TaskListResponse
			if err := ctx.getJSON("/api/tasks", &listing); err != nil {
				return err
			}
			rows := make([][]string, 0, len(listing.Tasks))
			for _, task := range listing.Tasks {
				state := ""
				if task.Running {
					state = "running"
				}
				if task.LastError != "" {
					state = "error: " + task.LastError
				}
				rows = append(rows, []string{
					task.Name,
					(time.Duration(task.IntervalSeconds) * time.Second).String(),
					task.NextRun,
					task.LastRun,
					strconv.Itoa(task.Runs),
					state,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderList(
				[]col{
					{title: "Task"},
					{title: "Interval", numeric: true},
					{title: "Next run"},
					{title: "Last run"},
					{title: "Runs", numeric: true},
					{title: "State"},
				},
				rows,
			))
			return nil
		},
	}
}
