// Package config provides configuration loading for stratad.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. All sections carry sensible defaults so a bare
// process starts with only OPENAI-compatible credentials supplied.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete stratad configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Completion CompletionConfig `koanf:"completion"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// APIKey protects the HTTP surface via the X-API-Key header.
	// When unset, authentication is bypassed and a warning is logged.
	APIKey Secret `koanf:"api_key"`
}

// KnowledgeConfig describes the on-disk knowledge base.
type KnowledgeConfig struct {
	// Root is the knowledge base directory. The first three path segments
	// below it form the organization/subunit/individual hierarchy.
	Root string `koanf:"root"`

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkOverlap is the number of characters repeated between
	// consecutive chunks.
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// StoreConfig describes per-organization vector store persistence.
type StoreConfig struct {
	// Root is the directory holding one store directory per organization.
	Root string `koanf:"root"`

	// Compress enables gzip compression of persisted vectors.
	Compress bool `koanf:"compress"`
}

// EmbeddingsConfig holds the embedding service configuration.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// CompletionConfig holds the text-completion service configuration.
type CompletionConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

// RetrievalConfig holds query-time retrieval tuning.
type RetrievalConfig struct {
	// TopK is the number of nearest chunks fetched per hierarchy level.
	TopK int `koanf:"top_k"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Knowledge.Root == "" {
		cfg.Knowledge.Root = "knowledge_base"
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = 1000
	}
	if cfg.Knowledge.ChunkOverlap == 0 {
		cfg.Knowledge.ChunkOverlap = 200
	}

	if cfg.Store.Root == "" {
		cfg.Store.Root = "vector_db"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}

	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = 0.7
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Knowledge.Root == "" {
		return errors.New("knowledge root is required")
	}
	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Knowledge.ChunkSize)
	}
	if c.Knowledge.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", c.Knowledge.ChunkOverlap)
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize)
	}
	if c.Store.Root == "" {
		return errors.New("store root is required")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
