package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Trigger a catalog reconciliation now",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.do(http.MethodPost, "/api/reconcile")
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			out := cmd.OutOrStdout()
			switch resp.StatusCode {
			case http.StatusAccepted:
				fmt.Fprintln(out, "Reconciliation started.")
				return nil
			case http.StatusConflict:
				fmt.Fprintln(out, "A reconciliation is already running.")
				return nil
			default:
				return decodeAPIError(resp)
			}
		},
	}
}
