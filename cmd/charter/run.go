package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/aretw0/charter/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [framework]",
	Short: "Drive a flow to completion",
	Long: `Starts a session with the given role bindings (or resumes one) and advances it
until it completes, aborts or pauses on a failed step. Actions are carried out
by the commands listed in the executors file, or by an operator answering
prompts on stdin with --operator.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, err := frameworkPath(args)
		if err != nil {
			return err
		}
		pairs, _ := cmd.Flags().GetStringArray("bind")
		resume, _ := cmd.Flags().GetString("resume")
		prefer, _ := cmd.Flags().GetString("prefer")
		asJSON, _ := cmd.Flags().GetBool("json")
		operator, _ := cmd.Flags().GetString("operator")
		if executors, _ := cmd.Flags().GetString("executors"); executors != "" {
			cfg.Executors = executors
		}

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.close()

		var exec ports.ProtocolExecutor
		switch operator {
		case "":
			if exec, err = processExecutor(); err != nil {
				return err
			}
		case "text":
			exec = runner.New(runner.NewTextHandler(cmd.InOrStdin(), cmd.ErrOrStderr()), runner.WithLogger(logger))
		case "json":
			exec = runner.New(runner.NewJSONHandler(cmd.InOrStdin(), cmd.ErrOrStderr()), runner.WithLogger(logger))
		default:
			return fmt.Errorf("unknown operator mode %q (want text or json)", operator)
		}
		it, err := charter.NewContext(ctx, path, interpreterOptions(b, domain.LifecycleHooks{}, exec)...)
		if err != nil {
			return err
		}

		sessionID := resume
		if sessionID == "" {
			bindings, err := parseBindings(pairs)
			if err != nil {
				return err
			}
			s, err := it.Start(ctx, bindings)
			if err != nil {
				return err
			}
			sessionID = s.ID
			logger.Info("session started", "session_id", s.ID, "state", s.CurrentState)
		}

		var advOpts []charter.AdvanceOption
		if prefer != "" {
			advOpts = append(advOpts, charter.PreferBranch(prefer))
		}
		s, steps, runErr := it.Run(ctx, sessionID, advOpts...)

		out := cmd.OutOrStdout()
		if asJSON {
			if s == nil {
				if s, err = it.Session(ctx, sessionID); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{"session": s, "steps": steps}); err != nil {
				return err
			}
			return runErr
		}

		for _, step := range steps {
			printStep(out, step)
		}
		if runErr != nil {
			return runErr
		}
		fmt.Fprintf(out, "session %s %s at %s\n", s.ID, s.Status, s.CurrentState)
		if s.Reason != "" {
			fmt.Fprintf(out, "  reason: %s\n", s.Reason)
		}
		return nil
	},
}

func printStep(w io.Writer, step *domain.StepResult) {
	fmt.Fprintf(w, "%s -> %s (%s)", step.From, step.To, step.Outcome)
	if len(step.Branch) > 0 {
		fmt.Fprintf(w, " via %s", strings.Join(step.Branch, ", "))
	}
	if step.Fallback {
		fmt.Fprint(w, " [fallback]")
	}
	fmt.Fprintln(w)
	for _, e := range step.Errors {
		fmt.Fprintf(w, "  error: %v\n", e)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayP("bind", "b", nil, "Role binding role=participant (repeatable)")
	runCmd.Flags().String("resume", "", "Resume a stored session instead of starting one")
	runCmd.Flags().String("prefer", "", "Try the OR branch containing this action first")
	runCmd.Flags().String("executors", "", "Executors file mapping actions to commands")
	runCmd.Flags().Bool("json", false, "Print the final session and steps as JSON")
	runCmd.Flags().String("operator", "", "Ask an operator for every outcome: text or json (prompts on stderr)")
}
