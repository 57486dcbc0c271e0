package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundnexus/finrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/dataset.csv", cfg.Dataset.Path)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "data/vector_db", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, "financial_profiles", cfg.VectorStore.Chromem.Collection)
	assert.Equal(t, "localhost", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, 3, cfg.VectorStore.Qdrant.MaxRetries)
	assert.Equal(t, time.Second, cfg.VectorStore.Qdrant.RetryBackoff)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embeddings.Model)
	assert.Equal(t, "gemini-pro", cfg.Generation.Model)
	assert.Equal(t, 30*time.Second, cfg.Generation.Timeout)
	assert.Empty(t, cfg.Generation.APIKey)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
dataset:
  path: /data/profiles.csv
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 7334
    collection: profiles_prod
embeddings:
  model: BAAI/bge-small-en-v1.5
log:
  level: debug
  format: console
`
	path := filepath.Join(t.TempDir(), "finrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/profiles.csv", cfg.Dataset.Path)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 7334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "profiles_prod", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FINRAG_DATASET_PATH", "/env/dataset.csv")
	t.Setenv("FINRAG_VECTORSTORE_PROVIDER", "chromem")
	t.Setenv("FINRAG_GENERATION_API_KEY", "secret-key")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/dataset.csv", cfg.Dataset.Path)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "secret-key", cfg.Generation.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := "dataset:\n  path: /file/dataset.csv\n"
	path := filepath.Join(t.TempDir(), "finrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("FINRAG_DATASET_PATH", "/env/wins.csv")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/wins.csv", cfg.Dataset.Path)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantError bool
	}{
		{
			name:   "defaults valid",
			mutate: func(c *config.Config) {},
		},
		{
			name:      "unsupported provider",
			mutate:    func(c *config.Config) { c.VectorStore.Provider = "pinecone" },
			wantError: true,
		},
		{
			name: "qdrant without host",
			mutate: func(c *config.Config) {
				c.VectorStore.Provider = "qdrant"
				c.VectorStore.Qdrant.Host = ""
			},
			wantError: true,
		},
		{
			name: "qdrant invalid port",
			mutate: func(c *config.Config) {
				c.VectorStore.Provider = "qdrant"
				c.VectorStore.Qdrant.Port = 70000
			},
			wantError: true,
		},
		{
			name:      "empty dataset path",
			mutate:    func(c *config.Config) { c.Dataset.Path = "" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
