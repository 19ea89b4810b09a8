package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/api"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var includeRemoved bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the cached catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/catalog"
			if includeRemoved {
				path += "?removed=1"
			}
			var listing api.CatalogListResponse
			if err := ctx.getJSON(path, &listing); err != nil {
				return err
			}

			if len(listing.Books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty; run `bindery reconcile` after pointing at a library.")
				return nil
			}

			rows := make([][]string, 0, len(listing.Books))
			for _, book := range listing.Books {
				state := ""
				if book.Removed {
					state = "removed"
				}
				rows = append(rows, []string{
					strconv.FormatInt(book.ID, 10),
					book.Title,
					strings.Join(book.Formats, ", "),
					book.LastModified,
					state,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderList(
				[]col{
					{title: "ID", numeric: true},
					{title: "Title"},
					{title: "Formats"},
					{title: "Modified"},
					{title: "State"},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeRemoved, "removed", false, "Include tombstoned books")
	cmd.AddCommand(newCatalogShowCommand(ctx))
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show one book and its stored artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}

			var detail struct {
				Book      api.Book       `json:"book"`
				Artifacts []api.Artifact `json:"artifacts"`
			}
			if err := ctx.getJSON(fmt.Sprintf("/api/catalog/%d", id), &detail); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:     %s\n", detail.Book.Title)
			fmt.Fprintf(out, "Sort:      %s\n", detail.Book.SortTitle)
			fmt.Fprintf(out, "UUID:      %s\n", detail.Book.UUID)
			fmt.Fprintf(out, "Formats:   %s\n", strings.Join(detail.Book.Formats, ", "))
			fmt.Fprintf(out, "Modified:  %s\n", detail.Book.LastModified)
			fmt.Fprintf(out, "Removed:   %s\n", yesNo(detail.Book.Removed))

			if len(detail.Artifacts) == 0 {
				fmt.Fprintln(out, "No stored artifacts.")
				return nil
			}
			rows := make([][]string, 0, len(detail.Artifacts))
			for _, artifact := range detail.Artifacts {
				rows = append(rows, []string{
					artifact.Format,
					artifact.Variant,
					artifact.Status,
					strconv.FormatInt(artifact.Size, 10),
					artifact.UpdatedAt,
				})
			}
			fmt.Fprintln(out, renderList(
				[]col{
					{title: "Format"},
					{title: "Variant"},
					{title: "Status"},
					{title: "Bytes", numeric: true},
					{title: "Updated"},
				},
				rows,
			))
			return nil
		},
	}
}
