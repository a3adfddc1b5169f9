package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/ipc"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage cached separation models",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List model tiers and whether they are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModelList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.Models))
				for _, model := range resp.Models {
					size := "-"
					if model.Available {
						size = formatSize(model.SizeBytes)
					}
					rows = append(rows, []string{model.Tier, model.DisplayName, model.Filename, yesNo(model.Available), size})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Tier", "Name", "File", "Cached", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	addJSONFlag(listCmd, &asJSON)

	downloadCmd := &cobra.Command{
		Use:   "download <tier>",
		Short: "Fetch a model tier into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := strings.ToLower(strings.TrimSpace(args[0]))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloading %s model...\n", tier)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModelDownload(tier)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cached %s (%s)\n", resp.Model.Filename, formatSize(resp.Model.SizeBytes))
				return nil
			})
		},
	}

	modelsCmd.AddCommand(listCmd, downloadCmd)
	return modelsCmd
}
