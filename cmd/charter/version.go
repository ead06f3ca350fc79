package main

import (
	"fmt"

	"github.com/aretw0/charter"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of charter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "charter version %s\n", charter.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
