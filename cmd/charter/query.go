package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/charter/internal/presentation/tui"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles <participant>",
	Short: "List the roles a participant holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := loadInterpreter(cmd.Context(), nil)
		if err != nil {
			return err
		}
		roles := it.RolesOf(cmd.Context(), args[0])
		if len(roles) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s holds no roles\n", args[0])
			return nil
		}
		for _, r := range roles {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var errDenied = errors.New("not authorized")

var authorizeCmd = &cobra.Command{
	Use:   "authorize <participant> <action>",
	Short: "Explain whether a participant may perform an action",
	Long: `Evaluates the privilege rules for the action and prints the verdict with
the rule trace. Exits non-zero when the action is denied.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := loadInterpreter(cmd.Context(), nil)
		if err != nil {
			return err
		}

		var d domain.Decision
		if as, _ := cmd.Flags().GetString("as"); as != "" {
			d = it.AuthorizeAs(cmd.Context(), args[0], domain.Role(as), args[1])
		} else {
			d = it.Authorize(cmd.Context(), args[0], args[1])
		}
		tui.PrintDecision(cmd.OutOrStdout(), d)
		if !d.Allowed {
			return errDenied
		}
		return nil
	},
}

var actionCmd = &cobra.Command{
	Use:   "action <name>",
	Short: "Resolve an action and its presentation definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := loadInterpreter(cmd.Context(), nil)
		if err != nil {
			return err
		}
		a, err := it.Action(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", a.Name, a.Protocol)

		role, _ := cmd.Flags().GetString("role")
		pd, err := it.PresentationDefinition(a.Name, domain.Role(role))
		if err != nil {
			return err
		}
		if pd != "" {
			fmt.Fprintf(out, "presentation definition: %s\n", pd)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd, authorizeCmd, actionCmd)
	authorizeCmd.Flags().String("as", "", "Check the action for this role only")
	actionCmd.Flags().String("role", "", "Role selecting a role-specific presentation definition")
}
