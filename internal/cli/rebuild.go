package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reindex every stored document from scratch",
	Long: `Re-embed and reindex all sections currently in the metadata store,
replacing the live index. Useful after changing the embedding model or
when index artifacts are lost.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := newLogger()

	ix, store, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Rebuilding index from metadata store...")

	var bar *progressbar.ProgressBar
	progressCallback := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Rebuilding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	n, err := ix.Rebuild(cmd.Context(), progressCallback)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("\nRebuild complete: %d sections indexed\n", n)
	fmt.Printf("Index stored at: %s\n", cfg.Index.Dir)
	return nil
}
