package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"recap/internal/client"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change daemon runtime settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsUnsetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				view, err := cl.Settings(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(view.Settings) == 0 {
					fmt.Fprintln(out, "No settings stored; the daemon is using defaults")
					return nil
				}
				keys := make([]string, 0, len(view.Settings))
				for key := range view.Settings {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, view.Settings[key]})
				}
				table := renderTable([]string{"Setting", "Value"}, rows,
					[]columnAlignment{alignLeft, alignLeft})
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				view, err := cl.Settings(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				value, ok := view.Settings[args[0]]
				if !ok {
					fmt.Fprintf(out, "%s is not set; the default applies\n", args[0])
					return nil
				}
				fmt.Fprintln(out, value)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a runtime setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newSettingsUnsetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Restore a setting to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.DeleteSetting(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
				return nil
			})
		},
	}
}
