package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	topK       int
	noSources  bool
	filterJSON string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the indexed profiles",
	Long: `Retrieve the most similar financial profiles and answer the question.

When a generation API key is configured the answer comes from the model;
otherwise the raw retrieved profiles are returned.

Examples:
  finrag ask "What savings rate do healthy profiles have?"
  finrag ask -k 10 "Typical debt-to-income for aggressive growth scenarios?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Similarity search without generation",
	Long: `Return the most similar profiles for a query, optionally filtered on
metadata fields.

Filters accept exact values and range operators:
  '{"scenario_category": "Aggressive Growth"}'
  '{"age": {">=": 30, "<=": 50}}'

Examples:
  finrag search "high income low debt"
  finrag search -k 3 --filter '{"credit_score": {">=": 700}}' "stable profile"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline and index statistics",
	RunE:  runStats,
}

func init() {
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of profiles to retrieve")
	askCmd.Flags().BoolVar(&noSources, "no-sources", false, "omit source profiles from output")
	searchCmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of profiles to retrieve")
	searchCmd.Flags().StringVar(&filterJSON, "filter", "", "metadata filter as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	p, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
		_ = logger.Sync()
	}()

	if err := p.Setup(cmd.Context(), false); err != nil {
		return err
	}

	question := strings.Join(args, " ")
	result, err := p.Answer(cmd.Context(), question, topK, !noSources)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	for i, src := range result.Sources {
		fmt.Printf("\n--- Source %d (score %.3f) ---\n%s\n", i+1, src.Score, src.Content)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	p, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
		_ = logger.Sync()
	}()

	if err := p.Setup(cmd.Context(), false); err != nil {
		return err
	}

	var rawFilter map[string]interface{}
	if filterJSON != "" {
		if err := json.Unmarshal([]byte(filterJSON), &rawFilter); err != nil {
			return fmt.Errorf("parsing --filter: %w", err)
		}
	}

	query := strings.Join(args, " ")
	docs, err := p.SimilaritySearch(cmd.Context(), query, topK, rawFilter)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("No matching profiles.")
		return nil
	}
	for i, doc := range docs {
		fmt.Printf("--- Result %d: %s (score %.3f) ---\n%s\n\n", i+1, doc.ID, doc.Score, doc.Text)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	p, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
		_ = logger.Sync()
	}()

	if err := p.Setup(cmd.Context(), false); err != nil {
		return err
	}

	stats := p.Statistics(cmd.Context())
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
