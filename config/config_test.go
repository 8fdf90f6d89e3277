package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.K1 != 1.5 {
		t.Errorf("expected K1=1.5, got %f", cfg.Index.K1)
	}
	if cfg.Index.B != 0.75 {
		t.Errorf("expected B=0.75, got %f", cfg.Index.B)
	}
	if cfg.Search.TopK != 12 {
		t.Errorf("expected TopK=12, got %d", cfg.Search.TopK)
	}
	if cfg.Search.MaxPerDomain != 2 {
		t.Errorf("expected MaxPerDomain=2, got %d", cfg.Search.MaxPerDomain)
	}
	if cfg.Search.DedupThreshold != 0.85 {
		t.Errorf("expected DedupThreshold=0.85, got %f", cfg.Search.DedupThreshold)
	}

	sum := cfg.Ranking.Vector + cfg.Ranking.Lexical + cfg.Ranking.Credibility + cfg.Ranking.Freshness
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("expected default weights to sum to 1.0, got %f", sum)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ctxrank.yaml")

	content := `
index:
  k1: 1.2
search:
  top_k: 20
  max_per_domain: 3
ranking:
  vector: 0.7
  lexical: 0.3
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.K1 != 1.2 {
		t.Errorf("expected K1=1.2, got %f", cfg.Index.K1)
	}
	if cfg.Search.TopK != 20 {
		t.Errorf("expected TopK=20, got %d", cfg.Search.TopK)
	}
	if cfg.Search.MaxPerDomain != 3 {
		t.Errorf("expected MaxPerDomain=3, got %d", cfg.Search.MaxPerDomain)
	}
	if cfg.Ranking.Vector != 0.7 {
		t.Errorf("expected vector weight 0.7, got %f", cfg.Ranking.Vector)
	}
	// Unset fields keep their defaults.
	if cfg.Search.DedupThreshold != 0.85 {
		t.Errorf("expected DedupThreshold=0.85, got %f", cfg.Search.DedupThreshold)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ctxrank.yaml")

	content := `
server:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ctxrank.yaml")

	cfg := DefaultConfig()
	cfg.Search.TopK = 7
	cfg.Metadata.Backend = "sqlite"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Search.TopK != 7 {
		t.Errorf("expected TopK=7 after round trip, got %d", loaded.Search.TopK)
	}
	if loaded.Metadata.Backend != "sqlite" {
		t.Errorf("expected backend sqlite, got %s", loaded.Metadata.Backend)
	}
}
