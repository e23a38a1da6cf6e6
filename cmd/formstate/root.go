package main

import (
	"fmt"
	"log/slog"

	"github.com/ezachrisen/formrules/internal/log"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	logLevel  string
	logFormat string
	logger    *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "formstate",
		Short: "Compute form field state from condition rules",
		Long: `formstate evaluates the condition rules of a process against a form
definition and an evaluation context, and reports which fields, grids and
grid columns are hidden or read-only, the calculated values and the
validation result.

Definitions and contexts are YAML (.yaml, .yml) or JSON (.json) files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default $FORMRULES_LOG_LEVEL or warn)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text, json (default $FORMRULES_LOG_FORMAT or text)")

	cmd.AddCommand(
		newComputeCommand(a),
		newEvalCommand(a),
		newDepsCommand(a),
		newValidateCommand(a),
		newWatchCommand(a),
	)
	return cmd
}

// setup builds the logger from the environment, overridden by flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := log.FromEnv()
	cfg.Output = cmd.ErrOrStderr()
	if a.logLevel != "" {
		cfg.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Format = log.Format(a.logFormat)
	}
	switch cfg.Format {
	case log.FormatText, log.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	a.logger = log.New(cfg)
	return nil
}
