// Package config provides configuration loading for finrag.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables, with hardcoded defaults for everything else.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a missing or malformed required setting.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete finrag configuration.
type Config struct {
	Dataset     DatasetConfig     `koanf:"dataset"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	Log         LogConfig         `koanf:"log"`
}

// DatasetConfig holds source dataset settings.
type DatasetConfig struct {
	// Path is the CSV file containing financial profile records.
	Path string `koanf:"path"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	// Provider is the backend: "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds settings for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// Collection is the collection name.
	Collection string `koanf:"collection"`
}

// QdrantConfig holds settings for the managed Qdrant backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int `koanf:"port"`

	// Collection is the remote index name.
	Collection string `koanf:"collection"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff, doubled on each retry.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

// EmbeddingsConfig holds embedding model settings.
type EmbeddingsConfig struct {
	// Model is the embedding model name.
	// Default: sentence-transformers/all-MiniLM-L6-v2 (384 dimensions).
	Model string `koanf:"model"`

	// CacheDir caches downloaded model files.
	CacheDir string `koanf:"cache_dir"`
}

// GenerationConfig holds settings for the optional generation capability.
//
// An empty APIKey is a steady, expected state: the pipeline reaches Ready
// without generation and answers degrade to raw retrieval.
type GenerationConfig struct {
	// APIKey is the Gemini API key. Empty disables generation.
	APIKey string `koanf:"api_key"`

	// Model is the generation model name.
	Model string `koanf:"model"`

	// BaseURL overrides the Gemini API endpoint (tests).
	BaseURL string `koanf:"base_url"`

	// Timeout bounds a single generation call.
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Dataset.Path == "" {
		c.Dataset.Path = "data/dataset.csv"
	}

	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Chromem.Path == "" {
		c.VectorStore.Chromem.Path = "data/vector_db"
	}
	if c.VectorStore.Chromem.Collection == "" {
		c.VectorStore.Chromem.Collection = "financial_profiles"
	}
	if c.VectorStore.Qdrant.Host == "" {
		c.VectorStore.Qdrant.Host = "localhost"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.VectorStore.Qdrant.Collection == "" {
		c.VectorStore.Qdrant.Collection = "financial_profiles"
	}
	if c.VectorStore.Qdrant.MaxRetries == 0 {
		c.VectorStore.Qdrant.MaxRetries = 3
	}
	if c.VectorStore.Qdrant.RetryBackoff == 0 {
		c.VectorStore.Qdrant.RetryBackoff = time.Second
	}

	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Embeddings.CacheDir == "" {
		c.Embeddings.CacheDir = "data/model_cache"
	}

	if c.Generation.Model == "" {
		c.Generation.Model = "gemini-pro"
	}
	if c.Generation.Timeout == 0 {
		c.Generation.Timeout = 30 * time.Second
	}

	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.VectorStore.Provider {
	case "chromem":
		if c.VectorStore.Chromem.Path == "" {
			return fmt.Errorf("%w: chromem path required", ErrInvalidConfig)
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant host required", ErrInvalidConfig)
		}
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant port %d", ErrInvalidConfig, c.VectorStore.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, c.VectorStore.Provider)
	}

	if c.Dataset.Path == "" {
		return fmt.Errorf("%w: dataset path required", ErrInvalidConfig)
	}
	return nil
}
