package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orgmetrics",
	Short: "Resolve employee and job counts for LinkedIn organizations",
	Long:  "Resolves a company reference to its organization ID, then cascades through structured queries, semi-structured endpoints and a rendered browser session to find its employee count and open job count.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
