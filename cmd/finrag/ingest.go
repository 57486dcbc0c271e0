package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forceRecreate bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Ingest the dataset into the vector index",
	Long: `Load the dataset, embed each profile and populate the vector index.

An already-populated index is left untouched unless --force is given.

Examples:
  finrag setup
  finrag setup --force
  finrag setup --config finrag.yaml`,
	RunE: runSetup,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Wipe the index and re-ingest the dataset from scratch",
	RunE: func(cmd *cobra.Command, args []string) error {
		forceRecreate = true
		return runSetup(cmd, args)
	},
}

func init() {
	setupCmd.Flags().BoolVar(&forceRecreate, "force", false, "wipe and rebuild an existing index")
}

func runSetup(cmd *cobra.Command, args []string) error {
	p, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
		_ = logger.Sync()
	}()

	if err := p.Setup(cmd.Context(), forceRecreate); err != nil {
		return err
	}

	stats := p.Statistics(cmd.Context())
	fmt.Printf("Index ready: %s documents in %s (model %s, generation available: %t)\n",
		stats.TotalDocuments, stats.Backend, stats.EmbeddingModel, stats.GenerationAvailable)
	return nil
}
