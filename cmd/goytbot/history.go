package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or one run with its items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			st, err := store.NewPersistentStore(cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			var runs []*domain.BatchRun
			if len(args) == 1 {
				run, err := st.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				runs = []*domain.BatchRun{run}
			} else {
				runs, err = st.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
			}

			return printRuns(cmd.OutOrStdout(), runs, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	return cmd
}

func printRuns(w io.Writer, runs []*domain.BatchRun, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(runs)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tHEIGHT\tITEMS\tSOURCE")
		for _, r := range runs {
			ok, failed := r.Counts()
			items := fmt.Sprintf("%d ok / %d failed", ok, failed)
			if len(r.Items) == 0 {
				items = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.CreatedAt.Format(time.DateTime), r.Status, heightLabel(r.TargetHeight), items, r.SourceURL)
			for _, it := range r.Items {
				detail := it.Title
				if it.Status == domain.ItemFailed {
					detail = it.Error
				}
				fmt.Fprintf(tw, "  %d/%d\t\t%s\t\t%s\t%s\n", it.Index, it.Total, it.Status, it.DeliveredAs, detail)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (expected table, json or yaml)", format)
	}
}

func heightLabel(h int) string {
	if h == 0 {
		return "best"
	}
	return fmt.Sprintf("%dp", h)
}
