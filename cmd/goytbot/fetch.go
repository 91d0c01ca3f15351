package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datallboy/goytbot/internal/delivery"
	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/engine"
	"github.com/spf13/cobra"
)

// cliConversation is the conversation key runs started from the terminal use.
const cliConversation = "cli"

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		height   int
		outDir   string
		playlist bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a video or playlist into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if height != 0 && !domain.OnLadder(cfg.Quality.Ladder, height) {
				return fmt.Errorf("height %d is not one of %v", height, cfg.Quality.Ladder)
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, _, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sink, err := delivery.NewDirSink(outDir, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			runner := engine.NewRunner(a, engine.OptionsFromContext(a))

			var run *domain.BatchRun
			if playlist {
				run, err = runner.RunPlaylist(ctx, cliConversation, args[0], height, sink)
			} else {
				run, err = runner.RunSingle(ctx, cliConversation, args[0], height, sink)
			}
			if run != nil {
				ok, failed := run.Counts()
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s, %d delivered, %d failed\n", run.ID, run.Status, ok, failed)
			}
			for _, d := range sink.Delivered() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", d.Path, d.Kind)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&height, "height", 0, "maximum video height, 0 for best available")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to place downloaded files in")
	cmd.Flags().BoolVar(&playlist, "playlist", false, "treat the url as a playlist and fetch every entry")
	return cmd
}
