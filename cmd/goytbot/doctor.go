package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
	"github.com/datallboy/goytbot/internal/ytdlp"
	"github.com/spf13/cobra"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that yt-dlp, ffmpeg and ffprobe are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tSTATUS\tPATH")
			deps := platform.DependencyStatus(cfg.Download.Binary, cfg.Transcode.FFmpeg, cfg.Transcode.FFprobe)
			for _, d := range deps {
				status := "ok"
				if !d.Found {
					status = "missing"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, status, d.Path)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if err := platform.ValidateDependencies(cfg.Download.Binary, cfg.Transcode.FFmpeg, cfg.Transcode.FFprobe); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			client, err := ytdlp.New(cfg.Download.Binary, cfg.Download.CookiesFile, logger.Nop())
			if err != nil {
				return err
			}
			version, err := client.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "yt-dlp version %s\n", version)
			if client.CookiesPath != "" {
				fmt.Fprintf(out, "cookies: %s\n", client.CookiesPath)
			}
			return nil
		},
	}
}
