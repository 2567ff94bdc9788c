package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestDefaultRunsOffline(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "local", cfg.Embedder.Type)
	assert.Equal(t, "static", cfg.Generator.Type)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "cosine", cfg.Store.Metric)
	assert.Equal(t, 1000, cfg.Chunker.MaxChars)
	assert.Equal(t, 200, cfg.Chunker.OverlapChars)
	assert.Equal(t, 5, cfg.Retriever.TopK)
	assert.Equal(t, 4, cfg.Retriever.Oversample)
	assert.Equal(t, 6000, cfg.Synthesizer.PromptBudget)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
store:
  type: qdrant
  metric: dot
  qdrant:
    url: http://localhost:6333
    collection: docs
retriever:
  top_k: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "qdrant", cfg.Store.Type)
	assert.Equal(t, "dot", cfg.Store.Metric)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	// Unset sections still get defaults.
	assert.Equal(t, "static", cfg.Generator.Type)
	assert.Equal(t, 1000, cfg.Chunker.MaxChars)
	assert.Equal(t, 4, cfg.Retriever.Oversample)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))
	_, err := Load(path)
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "bert" }},
		{"unknown generator", func(c *AppConfig) { c.Generator.Type = "llama" }},
		{"unknown store", func(c *AppConfig) { c.Store.Type = "redis" }},
		{"unknown metric", func(c *AppConfig) { c.Store.Metric = "manhattan" }},
		{"qdrant without section", func(c *AppConfig) { c.Store.Type = "qdrant"; c.Store.Qdrant = nil }},
		{"pgvector without section", func(c *AppConfig) { c.Store.Type = "pgvector"; c.Store.Postgres = nil }},
		{"zero max_chars", func(c *AppConfig) { c.Chunker.MaxChars = 0 }},
		{"overlap at max_chars", func(c *AppConfig) { c.Chunker.OverlapChars = c.Chunker.MaxChars }},
		{"zero top_k", func(c *AppConfig) { c.Retriever.TopK = 0 }},
		{"zero oversample", func(c *AppConfig) { c.Retriever.Oversample = 0 }},
		{"zero prompt budget", func(c *AppConfig) { c.Synthesizer.PromptBudget = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.ErrorIs(t, Validate(cfg), domain.ErrConfig)
		})
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	want := Default()
	want.Retriever.TopK = 7
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
