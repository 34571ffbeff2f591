package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"squash-venue-enrichment/pkg/config"
	"squash-venue-enrichment/pkg/container"
	"squash-venue-enrichment/pkg/logging"
)

var (
	cfg    *config.Config
	logger *logging.Logger
	deps   *container.Container
)

var rootCmd = &cobra.Command{
	Use:   "squash-venues",
	Short: "Categorize squash venues and fill in their court counts",
	Long: "Reads gap-category venues from the directory database, classifies them from Google Places data " +
		"with an LLM fallback, looks up court counts, and writes every change with an audit row.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		l, err := logging.NewLogger(logging.LogConfig{
			Level:  logging.ParseLevel(cfg.LogLevel),
			Format: cfg.LogFormat,
			Output: "stderr",
		})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		deps = buildContainer(cfg, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if deps != nil {
			_ = deps.Close()
		}
		_ = logger.Close()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
