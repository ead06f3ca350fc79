package main

import (
	"fmt"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe [framework]",
	Short: "Describe participants, privileges, actions and flows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := loadInterpreter(cmd.Context(), args)
		if err != nil {
			return err
		}

		render := tui.Plain
		if plain, _ := cmd.Flags().GetBool("plain"); !plain {
			tui.PrintBanner(cmd.ErrOrStderr(), charter.Version)
			render = tui.NewRenderer()
		}
		out, err := render(tui.Describe(it.Model()))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().Bool("plain", false, "Print raw markdown")
}
