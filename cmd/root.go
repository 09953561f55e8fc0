package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hs-classify",
	Short: "AHTN HS code classification service",
	Long:  "Classifies free-text product descriptions into AHTN 2022 HS codes via a heading-scoped reasoning pipeline, with streaming delivery and metered usage.",
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
