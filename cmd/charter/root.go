package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/charter/internal/config"
	"github.com/aretw0/charter/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "charter",
	Short: "Charter interprets trust framework governance documents",
	Long: `Charter loads a governance framework (participants, roles, privileges,
actions and flows), answers authorization queries against it and drives
protocol flows between the bound participants.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(cfg.Level(), logging.Format(cfg.LogFormat))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("framework", "f", "", "Governance framework document (JSON or YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("store", "", "Session store: memory, file or redis")
	rootCmd.PersistentFlags().String("session-dir", "", "Directory of the file session store")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL of the redis session store")
}

// applyFlags overrides the environment settings with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	overrides := map[string]*string{
		"framework":   &c.Framework,
		"log-level":   &c.LogLevel,
		"log-format":  &c.LogFormat,
		"store":       &c.Store,
		"session-dir": &c.SessionDir,
		"redis-url":   &c.RedisURL,
	}
	for name, target := range overrides {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}
		*target = v
	}
	return c.Validate()
}
