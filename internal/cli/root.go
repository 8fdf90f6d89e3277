package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ctxrank/config"
	"ctxrank/internal/adapter/embedding"
	"ctxrank/internal/adapter/metadata"
	"ctxrank/internal/domain"
	"ctxrank/internal/index"
	"ctxrank/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ctxrank",
	Short: "ctxrank - hybrid retrieval and ranking over fetched document sections",
	Long: `ctxrank indexes fetched document sections with dense embeddings and BM25,
and answers queries with a blended ranking of semantic similarity, lexical
overlap, source credibility, and freshness, with near-duplicate suppression
and per-domain diversity capping.

Example usage:
  ctxrank ingest ./documents        # Import fetched-document JSON files
  ctxrank search "mitochondria"     # Query the index from the terminal
  ctxrank serve                     # Expose the engine over HTTP
  ctxrank rebuild                   # Reindex everything from the metadata store`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ctxrank.yaml)")
}

func GetConfig() *config.Config {
	return cfg
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// newEmbedder builds the configured embedding provider. Provider
// construction fails fast on missing credentials.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	var opts []embedding.Option
	if cfg.Embedding.RequestsPerSecond > 0 {
		opts = append(opts, embedding.WithRequestsPerSecond(cfg.Embedding.RequestsPerSecond))
	}
	if cfg.Embedding.BatchSize > 0 {
		opts = append(opts, embedding.WithBatchSize(cfg.Embedding.BatchSize))
	}

	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, opts...)
		}
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts...)
	case "jina":
		return embedding.NewJinaEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts...)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, opts...)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newMetadataStore opens the configured document metadata backend.
func newMetadataStore(cfg *config.Config) (port.MetadataStore, error) {
	switch cfg.Metadata.Backend {
	case "bolt":
		return metadata.NewBoltStore(cfg.Metadata.Path)
	case "sqlite":
		return metadata.NewSQLiteStore(cfg.Metadata.Path)
	case "memory":
		return metadata.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported metadata backend: %s", cfg.Metadata.Backend)
	}
}

// newEngine wires the embedder, metadata store, and index together and
// loads any persisted index state. The caller owns closing both returned
// components; Close on the index persists its state.
func newEngine(cfg *config.Config, logger *slog.Logger) (*index.Index, port.MetadataStore, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := newMetadataStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	if err := config.EnsureIndexDir(cfg); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	ix := index.New(index.Options{
		Dir: cfg.Index.Dir,
		K1:  cfg.Index.K1,
		B:   cfg.Index.B,
		Weights: domain.Weights{
			Vector:      cfg.Ranking.Vector,
			Lexical:     cfg.Ranking.Lexical,
			Credibility: cfg.Ranking.Credibility,
			Freshness:   cfg.Ranking.Freshness,
		},
		DedupThreshold: cfg.Search.DedupThreshold,
		MaxPerDomain:   cfg.Search.MaxPerDomain,
	}, embedder, store, logger)

	if err := ix.Load(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to load index: %w", err)
	}

	return ix, store, nil
}
