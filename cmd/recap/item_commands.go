package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/client"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url-or-video-id>...",
		Short: "Queue videos for summarization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				for _, locator := range args {
					item, err := cl.AddItem(cmd.Context(), locator)
					if err != nil {
						return fmt.Errorf("add %s: %w", locator, err)
					}
					fmt.Fprintf(out, "Queued %s (%s)\n", item.VideoID, item.Status)
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var channelFilter string
	var sourceFilter string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				items, err := cl.ListItems(cmd.Context(), client.ItemFilter{
					Status:  statusFilter,
					Channel: channelFilter,
					Source:  sourceFilter,
					Limit:   limit,
					Offset:  offset,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.VideoID,
						truncateCell(item.Title, 48),
						item.Status,
						fmt.Sprintf("%d", item.RetryCount),
						formatDuration(item.DurationSeconds),
						formatTimestamp(item.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"Video", "Title", "Status", "Retries", "Length", "Added"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (comma separated)")
	cmd.Flags().StringVar(&channelFilter, "channel", "", "Filter by channel id")
	cmd.Flags().StringVar(&sourceFilter, "source", "", "Filter by source kind (manual or channel)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withTranscript bool

	cmd := &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show one item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				detail, err := cl.GetItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printItemDetail(cmd, detail, withTranscript)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withTranscript, "transcript", false, "Include the full transcript")
	return cmd
}

func printItemDetail(cmd *cobra.Command, detail api.ItemDetail, withTranscript bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderStatusLine("Video", statusInfo, detail.VideoID, colorize))
	if detail.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusInfo, detail.Title, colorize))
	}
	if detail.ChannelName != "" || detail.ChannelID != "" {
		channel := detail.ChannelName
		if channel == "" {
			channel = detail.ChannelID
		}
		fmt.Fprintln(out, renderStatusLine("Channel", statusInfo, channel, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Status", itemStatusKind(detail.Status), detail.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, detail.SourceKind, colorize))
	fmt.Fprintln(out, renderStatusLine("Retries", statusInfo, fmt.Sprintf("%d", detail.RetryCount), colorize))
	if detail.DurationSeconds > 0 {
		fmt.Fprintln(out, renderStatusLine("Length", statusInfo, formatDuration(detail.DurationSeconds), colorize))
	}
	if detail.TranscriptSource != "" {
		fmt.Fprintln(out, renderStatusLine("Transcript", statusOK, detail.TranscriptSource, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Email sent", statusInfo, yesNo(detail.EmailSent), colorize))
	if detail.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, detail.ErrorMessage, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Added", statusInfo, formatTimestamp(detail.CreatedAt), colorize))
	fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, formatTimestamp(detail.UpdatedAt), colorize))

	if detail.Summary != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Summary:")
		fmt.Fprintln(out, detail.Summary)
	}
	if withTranscript && detail.Transcript != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Transcript:")
		fmt.Fprintln(out, detail.Transcript)
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "retry <video-id>...",
		Short: "Re-queue failed items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				for _, videoID := range args {
					item, err := cl.RetryItem(cmd.Context(), videoID, force)
					if err != nil {
						if client.IsConflict(err) {
							fmt.Fprintf(out, "Item %s is not retryable: %v\n", videoID, err)
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Item %s re-queued (attempt %d)\n", item.VideoID, item.RetryCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Also retry permanently failed items and clear cached transcript failures")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <video-id>...",
		Short: "Stop items from being processed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				for _, videoID := range args {
					result, err := cl.StopItem(cmd.Context(), videoID)
					if err != nil {
						return err
					}
					switch {
					case result.Stopped:
						fmt.Fprintf(out, "Item %s stopped\n", videoID)
					case result.Item.StopRequested:
						fmt.Fprintf(out, "Item %s is processing; it will stop at the next step\n", videoID)
					default:
						fmt.Fprintf(out, "Item %s is already finished (%s)\n", videoID, result.Item.Status)
					}
				}
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <video-id>...",
		Short: "Remove items from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				out := cmd.OutOrStdout()
				for _, videoID := range args {
					if err := cl.RemoveItem(cmd.Context(), videoID); err != nil {
						if client.IsNotFound(err) {
							fmt.Fprintf(out, "Item %s not found\n", videoID)
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Removed %s\n", videoID)
				}
				return nil
			})
		},
	}
}
