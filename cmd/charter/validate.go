package main

import (
	"fmt"

	"github.com/aretw0/charter/pkg/adapters/file"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [framework]",
	Short: "Check the framework for consistency",
	Long: `Checks every cross reference of the framework (roles, actions, flow states,
presentation definitions) and reports all problems at once, followed by warnings
such as unreachable states.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := frameworkPath(args)
		if err != nil {
			return err
		}
		fw, err := file.NewLoader(path).Load(cmd.Context())
		if err != nil {
			return err
		}
		report, err := governance.Validate(fw)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "Framework %s (v%s) is valid! ✅\n", fw.Name, fw.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
