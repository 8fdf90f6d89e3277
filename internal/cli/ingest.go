package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ctxrank/internal/adapter/fs"
	"ctxrank/internal/usecase"
)

var (
	ingestIncludes []string
	ingestExcludes []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Import fetched-document JSON files into the index",
	Long: `Walk a directory of fetched-document JSON files, store their metadata
and sections, and index every section long enough to be worth retrieving.

Examples:
  ctxrank ingest ./documents                     # Import all *.json files
  ctxrank ingest ./documents --exclude "draft/"  # Skip a subdirectory`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVar(&ingestIncludes, "include", nil, "glob patterns to include (default **/*.json)")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns to exclude")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	logger := newLogger()

	ix, store, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	walker := fs.NewWalker(ingestIncludes, ingestExcludes)
	ingestUC := usecase.NewIngestUseCase(walker, store, ix)

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var startTime time.Time

	progressCallback := func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
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

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	result, err := ingestUC.Ingest(cmd.Context(), path, progressCallback)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	// Persist the grown index.
	if err := ix.Close(); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Files ingested:   %d\n", result.FilesIngested)
	fmt.Printf("  Files failed:     %d\n", result.FilesFailed)
	fmt.Printf("  Sections stored:  %d\n", result.SectionsStored)
	fmt.Printf("  Sections indexed: %d\n", result.SectionsIndexed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", cfg.Index.Dir)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
