package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "medical-articles", cfg.Index.Name)
	assert.Equal(t, 1536, cfg.Index.VectorDim)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, 50, cfg.Source.PageSize)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, 0.4, cfg.Search.Threshold)
	assert.Equal(t, 3, cfg.Search.MaxSources)
	assert.Equal(t, 8000, cfg.Search.SourceCharBudget)
	assert.Equal(t, 3, cfg.Ingest.MaxExtraPages)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(indexEndpointEnv, "http://search:9200")
	t.Setenv(sourceUserEnv, "apiuser")
	t.Setenv(sourceKeyEnv, "secret")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load()

	assert.Equal(t, "http://search:9200", cfg.Index.Endpoint)
	assert.Equal(t, "apiuser", cfg.Source.APIUser)
	assert.Equal(t, "secret", cfg.Source.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  name: custom-index
  vectorDim: 768
search:
  limit: 25
`), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()

	assert.Equal(t, "custom-index", cfg.Index.Name)
	assert.Equal(t, 768, cfg.Index.VectorDim)
	assert.Equal(t, 25, cfg.Search.Limit)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  endpoint: http://from-file:9200\n"), 0o644))
	t.Setenv(configPathEnv, path)
	t.Setenv(indexEndpointEnv, "http://from-env:9200")

	cfg := Load()
	assert.Equal(t, "http://from-env:9200", cfg.Index.Endpoint)
}

func TestLoadBadFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.Equal(t, "medical-articles", cfg.Index.Name)
}
