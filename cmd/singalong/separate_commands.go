package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/ipc"
)

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	separateCmd := &cobra.Command{
		Use:   "separate",
		Short: "Queue and inspect vocal separation",
	}
	separateCmd.AddCommand(newSeparateAddCommand(ctx))
	separateCmd.AddCommand(newSeparateListCommand(ctx))
	return separateCmd
}

func newSeparateAddCommand(ctx *commandContext) *cobra.Command {
	var quality string
	cmd := &cobra.Command{
		Use:   "add <catalog-id>",
		Short: "Split a library entry into vocal and instrumental stems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SeparateAdd(strings.TrimSpace(args[0]), quality)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued separation %s for %s (quality %s)\n", resp.Job.ID, resp.Job.CatalogID, resp.Job.Quality)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&quality, "quality", "", "Model tier: high, normal or fast (defaults to the saved preference)")
	return cmd
}

func newSeparateListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List separation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SeparateList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No separation jobs")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					status := job.Status
					if job.ErrorMessage != "" {
						status += ": " + job.ErrorMessage
					}
					rows = append(rows, []string{job.ID, job.CatalogID, job.Quality, status, formatPercent(job.Progress)})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Entry", "Quality", "Status", "Progress"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
