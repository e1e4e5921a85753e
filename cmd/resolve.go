package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/resolver"
)

var (
	resolveMode    string
	resolveTimeout time.Duration
	resolveCompact bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>",
	Short: "Resolve employee and job counts for one company",
	Long:  "Accepts a company URL, a domain-relative path, or a bare vanity slug and prints the resolution result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if resolveTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, resolveTimeout)
			defer cancel()
		}

		opts, err := callOptions(resolveMode)
		if err != nil {
			return err
		}

		env, err := initResolver(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Resolve(ctx, args[0], opts...)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), result, !resolveCompact)
	},
}

// callOptions turns a --mode flag value into resolve options.
func callOptions(mode string) ([]resolver.CallOption, error) {
	if mode == "" {
		return nil, nil
	}
	m, err := resolver.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return []resolver.CallOption{resolver.WithMode(m)}, nil
}

func writeResult(w io.Writer, result *model.ResolutionResult, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return eris.Wrap(err, "encode result")
	}
	return nil
}

func init() {
	resolveCmd.Flags().StringVar(&resolveMode, "mode", "", "strategy mode: auto, structured-only, semi-structured-only, rendered-only (default from config)")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 0, "overall deadline for the resolution (0 = config)")
	resolveCmd.Flags().BoolVar(&resolveCompact, "compact", false, "print single-line JSON")
	rootCmd.AddCommand(resolveCmd)
}
