package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ctxrank/internal/domain"
)

var (
	searchTopK    int
	searchJSON    bool
	searchWeights string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index from the terminal",
	Long: `Run one hybrid query against the local index and print the ranked
results with their component scores.

Examples:
  ctxrank search "mitochondria function"
  ctxrank search "transformer architecture" --top-k 5 --json
  ctxrank search "recent findings" --weights '{"vector":0.3,"lexical":0.2,"credibility":0.1,"freshness":0.4}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().StringVar(&searchWeights, "weights", "", "ranking weights as a JSON object")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	cfg := GetConfig()
	logger := newLogger()

	// Read-only command, so the index is never re-persisted.
	ix, store, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var weights domain.Weights
	if searchWeights != "" {
		if err := json.Unmarshal([]byte(searchWeights), &weights); err != nil {
			return fmt.Errorf("invalid weights: %w", err)
		}
	}

	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := ix.SearchHybrid(cmd.Context(), query, topK, weights)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), query)
	for _, r := range results {
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", r.Rank, r.Title, r.Score)
		fmt.Printf("    %s\n", r.URL)
		if r.Heading != "" {
			if r.Page > 0 {
				fmt.Printf("    %s (p. %d)\n", r.Heading, r.Page)
			} else {
				fmt.Printf("    %s\n", r.Heading)
			}
		}
		fmt.Printf("    vector: %.2f  bm25: %.2f  credibility: %.2f  freshness: %.2f\n",
			r.Details.VectorScore, r.Details.BM25Score,
			r.Details.CredibilityScore, r.Details.FreshnessScore)

		// Truncate long text for display
		text := r.Content
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
