package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recap/internal/client"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channels monitored for new uploads",
	}

	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelRemoveCommand(ctx))
	channelCmd.AddCommand(newChannelEnableCommand(ctx))
	channelCmd.AddCommand(newChannelDisableCommand(ctx))

	return channelCmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <channel-id-or-url>",
		Short: "Monitor a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				channel, err := cl.AddChannel(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s", channel.ChannelID)
				if channel.Name != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", channel.Name)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Only uploads published from now on will be queued")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the channel")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				channels, err := cl.ListChannels(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(channels) == 0 {
					fmt.Fprintln(out, "No channels")
					return nil
				}
				rows := make([][]string, 0, len(channels))
				for _, channel := range channels {
					rows = append(rows, []string{
						channel.ChannelID,
						truncateCell(channel.Name, 40),
						yesNo(channel.Enabled),
						formatTimestamp(channel.AddedAt),
					})
				}
				table := renderTable(
					[]string{"Channel", "Name", "Enabled", "Added"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newChannelRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <channel-id>",
		Short: "Stop monitoring a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.RemoveChannel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newChannelEnableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <channel-id>",
		Short: "Resume discovery for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setChannelEnabled(ctx, cmd, args[0], true)
		},
	}
}

func newChannelDisableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <channel-id>",
		Short: "Pause discovery for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setChannelEnabled(ctx, cmd, args[0], false)
		},
	}
}

func setChannelEnabled(ctx *commandContext, cmd *cobra.Command, channelID string, enabled bool) error {
	return ctx.withClient(func(cl *client.Client) error {
		if err := cl.SetChannelEnabled(cmd.Context(), channelID, enabled); err != nil {
			return err
		}
		state := "enabled"
		if !enabled {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Channel %s %s\n", channelID, state)
		return nil
	})
}
