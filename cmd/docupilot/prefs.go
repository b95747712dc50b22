package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the display theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			switch {
			case len(args) == 0:
			case args[0] == "toggle":
				ws.ToggleTheme()
			default:
				if err := ws.SetTheme(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Theme: %s\n", ws.Theme().Mode())
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Sign out and erase every locally stored preference",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to erase local state without --yes")
			}
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := ws.Purge(ctx); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "Local state erased")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}
