// Package config loads application configuration from YAML with sane defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type    string `yaml:"type"` // "snapshot" or "sqlite"
	DataDir string `yaml:"data_dir"`
}

// OllamaConfig contains connection details for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig configures the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"` // "ollama" or "openai"
	Ollama *OllamaConfig         `yaml:"ollama,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkingConfig configures how documents are split before embedding.
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"`
	Overlap      int `yaml:"overlap"`
}

// QueryConfig tunes retrieval and answer assembly.
type QueryConfig struct {
	TopK       int `yaml:"top_k"`
	MaxSources int `yaml:"max_sources"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers      int    `yaml:"workers"`
	DocumentsDir string `yaml:"documents_dir"`
	Watch        bool   `yaml:"watch"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Embedder EmbedderConfig `yaml:"embedder"`
	LLM      OllamaConfig   `yaml:"llm"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Query    QueryConfig    `yaml:"query"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// Load reads a config from the given path. A missing file is not an
// error: the defaults are returned so the app runs out of the box.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "snapshot"
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "./data"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "ollama"
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 60
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 300
	}
	if cfg.Chunking.MaxChunkSize == 0 {
		cfg.Chunking.MaxChunkSize = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.MaxSources == 0 {
		cfg.Query.MaxSources = 3
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 8
	}
	if cfg.Ingest.DocumentsDir == "" {
		cfg.Ingest.DocumentsDir = "./documents"
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Store.Type {
	case "snapshot", "sqlite":
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
	switch cfg.Embedder.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
	return nil
}
