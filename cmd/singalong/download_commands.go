package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/ipc"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Queue and inspect media downloads",
	}
	downloadCmd.AddCommand(newDownloadValidateCommand(ctx))
	downloadCmd.AddCommand(newDownloadAddCommand(ctx))
	downloadCmd.AddCommand(newDownloadListCommand(ctx))
	return downloadCmd
}

func newDownloadValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <url>",
		Short: "Probe a URL without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DownloadValidate(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:    %s\n", orDash(resp.Title))
				fmt.Fprintf(out, "Uploader: %s\n", orDash(resp.Uploader))
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(resp.Duration))
				fmt.Fprintf(out, "Remote ID: %s\n", orDash(resp.RemoteID))
				return nil
			})
		},
	}
}

func newDownloadAddCommand(ctx *commandContext) *cobra.Command {
	var req ipc.DownloadAddRequest
	var lyricsFile string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = strings.TrimSpace(args[0])
			if lyricsFile != "" {
				text, err := readLyricsFile(lyricsFile)
				if err != nil {
					return err
				}
				req.LyricsText = text
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DownloadAdd(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued download %s (%s)\n", resp.Job.ID, resp.Job.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Quality, "quality", "", "Audio quality: best, high or normal")
	cmd.Flags().StringVar(&req.Title, "title", "", "Override the probed title")
	cmd.Flags().StringVar(&req.Artist, "artist", "", "Override the probed artist")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "Track kind: 原曲 (original) or 伴奏 (accompaniment)")
	cmd.Flags().StringVar(&lyricsFile, "lyrics-file", "", "Attach lyrics from a text or LRC file")
	return cmd
}

func newDownloadListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List download jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DownloadList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No download jobs")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					status := job.Status
					if job.Error != "" {
						status += ": " + job.Error
					}
					rows = append(rows, []string{job.ID, orDash(job.Title), job.Quality, status, formatPercent(job.Progress)})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Title", "Quality", "Status", "Progress"},
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

func readLyricsFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read lyrics file: %w", err)
	}
	return string(data), nil
}
