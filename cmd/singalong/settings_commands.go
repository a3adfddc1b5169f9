package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsShow()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Separation quality: %s\n", resp.SeparationQuality)
				if resp.IgnoredVersion != "" {
					fmt.Fprintf(out, "Ignored update:     %s\n", resp.IgnoredVersion)
				}
				return nil
			})
		},
	}

	setQualityCmd := &cobra.Command{
		Use:   "set-quality <high|normal|fast>",
		Short: "Set the default separation model tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsSetQuality(strings.ToLower(strings.TrimSpace(args[0])))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Separation quality set to %s\n", resp.SeparationQuality)
				return nil
			})
		},
	}

	settingsCmd.AddCommand(showCmd, setQualityCmd)
	return settingsCmd
}
