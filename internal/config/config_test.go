package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Store.Type != "snapshot" {
		t.Errorf("store type = %q, want snapshot", cfg.Store.Type)
	}
	if cfg.Chunking.MaxChunkSize != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Query.TopK != 5 || cfg.Query.MaxSources != 3 {
		t.Errorf("query defaults = %+v", cfg.Query)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Ingest.Workers)
	}
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
store:
  type: sqlite
chunking:
  max_chunk_size: 500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("store type = %q, want sqlite", cfg.Store.Type)
	}
	if cfg.Chunking.MaxChunkSize != 500 {
		t.Errorf("max_chunk_size = %d, want 500", cfg.Chunking.MaxChunkSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Chunking.Overlap != 200 {
		t.Errorf("overlap = %d, want 200", cfg.Chunking.Overlap)
	}
	if cfg.Embedder.Type != "ollama" || cfg.Embedder.Ollama.Model != "nomic-embed-text" {
		t.Errorf("embedder defaults = %+v", cfg.Embedder)
	}
	if cfg.LLM.Model != "llama3.2" {
		t.Errorf("llm model = %q, want llama3.2", cfg.LLM.Model)
	}
}

func TestLoad_OpenAIEmbedderDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	oa := cfg.Embedder.OpenAI
	if oa == nil {
		t.Fatal("openai section not populated")
	}
	if oa.Model != "text-embedding-3-large" {
		t.Errorf("model = %q", oa.Model)
	}
	if oa.BaseURL != "https://api.openai.com/v1" || oa.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai defaults = %+v", oa)
	}
}

func TestLoad_RejectsUnknownStoreType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  type: redis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
