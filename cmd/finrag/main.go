// Package main implements the finrag CLI: ingestion and retrieval over the
// financial profile dataset.
package main

import (
	"fmt"
	"os"

	"github.com/fundnexus/finrag/internal/config"
	"github.com/fundnexus/finrag/internal/logging"
	"github.com/fundnexus/finrag/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Retrieval pipeline over financial profiles",
	Long: `finrag ingests a financial profile dataset into a vector index and
answers natural-language questions against it.

Examples:
  # Ingest the dataset (skips work if the index is already populated)
  finrag setup

  # Ask a question
  finrag ask "What investment scenario suits a 30-year-old with high savings?"

  # Similarity search with a metadata filter
  finrag search "good credit score" --filter '{"age": {"<=": 40}}'

  # Show index statistics
  finrag stats`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
}

// bootstrap loads configuration, builds the logger and constructs the
// pipeline. Callers own the returned pipeline and must Close it.
func bootstrap() (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	return pipeline.New(cfg, logger), logger, nil
}
