package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := newLogger()

	ix, store, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stats := ix.Stats()

	if statsJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Index statistics:\n")
	fmt.Printf("  Total vectors:     %d\n", stats.TotalVectors)
	fmt.Printf("  Dimension:         %d\n", stats.Dimension)
	fmt.Printf("  Model:             %s\n", stats.ModelName)
	fmt.Printf("  Index path:        %s\n", stats.IndexPath)
	fmt.Printf("  BM25 indexed:      %v\n", stats.BM25Indexed)
	fmt.Printf("  BM25 texts:        %d\n", stats.BM25Texts)
	fmt.Printf("  Simhash threshold: %.2f\n", stats.SimhashThreshold)
	return nil
}
