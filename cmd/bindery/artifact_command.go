package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newArtifactCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var params []string

	cmd := &cobra.Command{
		Use:   "artifact <book-id> <format>",
		Short: "Fetch an artifact, converting on demand",
		Long: "Fetch a derived artifact for a book, converting on demand when the\n" +
			"cache misses. Variant parameters select alternate renditions, for\n" +
			"example `--param pages=3-5` for a PDF page extract or\n" +
			"`--param width=300` for a cover thumbnail.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			format := strings.ToUpper(strings.TrimSpace(args[1]))

			query := url.Values{}
			for _, param := range params {
				key, value, ok := strings.Cut(param, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid --param %q, want key=value", param)
				}
				query.Set(strings.TrimSpace(key), strings.TrimSpace(value))
			}

			path := fmt.Sprintf("/api/artifacts/%d/%s", bookID, url.PathEscape(format))
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			body, err := ctx.fetch(path)
			if err != nil {
				return err
			}
			defer body.Close()

			target := strings.TrimSpace(outputPath)
			if target == "" || target == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), body)
				return err
			}

			file, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			written, err := io.Copy(file, body)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("write output file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", written, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Variant parameter key=value (repeatable)")
	return cmd
}
