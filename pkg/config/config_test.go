package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.ShortTermWindow)
	assert.Equal(t, 0.90, cfg.HybridVectorWeight)
	assert.True(t, cfg.EnableQueryClassifier)
	assert.False(t, cfg.EnableReranking)
	assert.Equal(t, 5, cfg.TopKDefault)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, 0.7, cfg.Reranker.FusionWeight)
	assert.Equal(t, 100, cfg.Chunker.MinChars)
	assert.Equal(t, 500, cfg.Chunker.MaxChars)
	assert.Equal(t, 0.5, cfg.Chunker.AbsoluteFloor)
	assert.Equal(t, 75, cfg.Chunker.Percentile)
	assert.Equal(t, 86400, cfg.Cache.TTLSeconds)
	assert.Equal(t, 10, cfg.Cache.HTTPTimeoutSeconds)
	assert.Equal(t, 3000, cfg.Cache.MaxSummaryInputChars)
	assert.Equal(t, 300, cfg.Cache.SummaryMaxWords)
	assert.Zero(t, cfg.MetadataBoost.WRecency)
	assert.Zero(t, cfg.MetadataBoost.WAuthority)
}

func TestLoadFromYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memorycore.yaml")

	contents := []byte(`
hybrid_vector_weight: 0.75
enable_reranking: true
reranker:
  fusion_weight: 0.5
chunker:
  min_chars: 150
metadata_boost:
  w_recency: 0.2
  w_authority: 0.1
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := LoadFromYAML(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.75, cfg.HybridVectorWeight)
	assert.True(t, cfg.EnableReranking)
	assert.Equal(t, 0.5, cfg.Reranker.FusionWeight)
	assert.Equal(t, 150, cfg.Chunker.MinChars)
	assert.Equal(t, 0.2, cfg.MetadataBoost.WRecency)
	assert.Equal(t, 0.1, cfg.MetadataBoost.WAuthority)

	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.ShortTermWindow)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 500, cfg.Chunker.MaxChars)
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	_, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.ShortTermWindow = 0 }},
		{"alpha above one", func(c *Config) { c.HybridVectorWeight = 1.5 }},
		{"negative alpha", func(c *Config) { c.HybridVectorWeight = -0.1 }},
		{"fusion weight above one", func(c *Config) { c.Reranker.FusionWeight = 1.1 }},
		{"zero topk", func(c *Config) { c.TopKDefault = 0 }},
		{"zero bm25 k1", func(c *Config) { c.BM25.K1 = 0 }},
		{"bm25 b above one", func(c *Config) { c.BM25.B = 1.2 }},
		{"max chars below min chars", func(c *Config) { c.Chunker.MaxChars = c.Chunker.MinChars }},
		{"percentile out of range", func(c *Config) { c.Chunker.Percentile = 101 }},
		{"zero ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }},
		{"zero http timeout", func(c *Config) { c.Cache.HTTPTimeoutSeconds = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStringReportsKeySettings(t *testing.T) {
	cfg := Default()
	s := cfg.String()
	assert.Contains(t, s, "alpha=0.90")
	assert.Contains(t, s, "topK=5")
}
