package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"recap/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				if status.RunInFlight {
					fmt.Fprintln(out, renderStatusLine("Run", statusInfo, "in progress", colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Run", statusInfo, "idle", colorize))
				}
				if status.NextRunAt != nil {
					fmt.Fprintln(out, renderStatusLine("Next run", statusInfo, formatTimestamp(*status.NextRunAt), colorize))
				}
				if last := status.LastRun; last != nil {
					summary := fmt.Sprintf("%s: %d processed, %d succeeded, %d failed",
						formatTimestamp(last.FinishedAt), last.Processed, last.Succeeded, last.Failed)
					kind := statusOK
					if last.Failed > 0 {
						kind = statusWarn
					}
					fmt.Fprintln(out, renderStatusLine("Last run", kind, summary, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

				if len(status.ItemCounts) == 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				statuses := make([]string, 0, len(status.ItemCounts))
				for name := range status.ItemCounts {
					statuses = append(statuses, name)
				}
				sort.Strings(statuses)
				rows := make([][]string, 0, len(statuses))
				for _, name := range statuses {
					rows = append(rows, []string{name, fmt.Sprintf("%d", status.ItemCounts[name])})
				}
				table := renderTable([]string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Trigger a processing run now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				stats, err := cl.Process(cmd.Context(), wait)
				if err != nil {
					if client.IsConflict(err) {
						fmt.Fprintln(out, "A run is already pending")
						return nil
					}
					return err
				}
				if stats == nil {
					fmt.Fprintln(out, "Run triggered")
					return nil
				}
				fmt.Fprintf(out, "Run %s finished in %s\n",
					stats.RunID, stats.FinishedAt.Sub(stats.StartedAt).Round(10*time.Millisecond))
				fmt.Fprintf(out, "Discovered %d, processed %d: %d succeeded, %d failed, %d stopped, %d skipped\n",
					stats.Discovered, stats.Processed, stats.Succeeded, stats.Failed, stats.Stopped, stats.Skipped)
				if stats.Reclaimed > 0 {
					fmt.Fprintf(out, "Reclaimed %d stuck items\n", stats.Reclaimed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the run finishes and print statistics")
	return cmd
}
