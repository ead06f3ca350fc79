package main

import (
	"fmt"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [framework]",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the flow states. With --session the
states visited by a stored session are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, err := frameworkPath(args)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		var overlay *graph.GraphOverlay
		opts := []charter.Option{charter.WithLogger(logger)}
		if sessionID != "" {
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.close()
			opts = append(opts, charter.WithSessionStore(b.store))
		}

		it, err := charter.NewContext(ctx, path, opts...)
		if err != nil {
			return err
		}
		if sessionID != "" {
			s, err := it.Session(ctx, sessionID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(s)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(it.Model().Flows(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of a stored session")
}
