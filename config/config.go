package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ctxrank service.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Search    SearchConfig    `yaml:"search"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Server    ServerConfig    `yaml:"server"`
}

// IndexConfig holds index state configuration.
type IndexConfig struct {
	Dir string  `yaml:"dir"` // Directory holding the persisted index artifacts
	K1  float64 `yaml:"k1"`
	B   float64 `yaml:"b"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`    // "openai", "jina", "ollama", "mock"
	Model             string  `yaml:"model"`       // e.g., "text-embedding-3-small"
	BaseURL           string  `yaml:"base_url"`    // Override for self-hosted endpoints
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable for API key
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// RankingConfig holds the blended score weights. The four weights should
// sum to 1.0; other sums are accepted and scale scores accordingly.
type RankingConfig struct {
	Vector      float64 `yaml:"vector"`
	Lexical     float64 `yaml:"lexical"`
	Credibility float64 `yaml:"credibility"`
	Freshness   float64 `yaml:"freshness"`
}

// SearchConfig holds query-path configuration.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	MaxPerDomain   int     `yaml:"max_per_domain"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
}

// MetadataConfig holds document metadata store configuration.
type MetadataConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "memory"
	Path    string `yaml:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Dir: ".ctxrank",
			K1:  1.5,
			B:   0.75,
		},
		Embedding: EmbeddingConfig{
			Provider:          "openai",
			Model:             "text-embedding-3-small",
			APIKeyEnv:         "OPENAI_API_KEY",
			Dimension:         1536,
			BatchSize:         100,
			RequestsPerSecond: 0,
		},
		Ranking: RankingConfig{
			Vector:      0.55,
			Lexical:     0.25,
			Credibility: 0.15,
			Freshness:   0.05,
		},
		Search: SearchConfig{
			TopK:           12,
			MaxPerDomain:   2,
			DedupThreshold: 0.85,
		},
		Metadata: MetadataConfig{
			Backend: "bolt",
			Path:    filepath.Join(".ctxrank", "metadata.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ctxrank.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try ctxrank.yaml in the directory
	path := filepath.Join(dir, "ctxrank.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .ctxrank/config.yaml
	path = filepath.Join(dir, ".ctxrank", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureIndexDir ensures the index artifact directory exists.
func EnsureIndexDir(c *Config) error {
	return os.MkdirAll(c.Index.Dir, 0755)
}
