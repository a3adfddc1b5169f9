package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/config"
	"singalong/internal/ipc"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and manage library entries",
	}
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryRemoveCommand(ctx))
	libraryCmd.AddCommand(newLibraryImportCommand(ctx))
	return libraryCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						entry.ID,
						entry.Title,
						orDash(entry.Artist),
						entry.Type,
						entry.AudioStatus,
						entry.LyricsStatus,
						formatDuration(entry.DurationSeconds),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Title", "Artist", "Type", "Audio", "Lyrics", "Length"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newLibraryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a library entry and its files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.LibraryRemove(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}
}

func newLibraryImportCommand(ctx *commandContext) *cobra.Command {
	var req ipc.LibraryImportRequest
	var lyricsFile string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Copy a local audio file into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			req.SourcePath = source
			if lyricsFile != "" {
				text, err := readLyricsFile(lyricsFile)
				if err != nil {
					return err
				}
				req.LyricsText = text
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryImport(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s (separable: %s)\n", resp.Entry.Title, resp.Entry.ID, yesNo(resp.Entry.Separable))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Entry title (required)")
	cmd.Flags().StringVar(&req.Artist, "artist", "", "Entry artist")
	cmd.Flags().StringVar(&req.Type, "kind", "", "Track kind: 原曲 (original) or 伴奏 (accompaniment)")
	cmd.Flags().StringVar(&lyricsFile, "lyrics-file", "", "Attach lyrics from a text or LRC file")
	return cmd
}
