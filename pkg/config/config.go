// Package config holds the memory core's tunable parameters: fusion
// weights, cache TTLs, chunker thresholds, and reranker settings. A Config
// is built with Default() and optionally overlaid from a YAML file with
// LoadFromYAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all memory core configuration.
//
// Fields are grouped into one sub-struct per component family, each
// independently documented.
type Config struct {
	// ShortTermWindow is the short-term buffer capacity.
	ShortTermWindow int `yaml:"short_term_window"`

	// HybridVectorWeight (α) is the dense-side weight used by fusion when
	// the query classifier is disabled. With the classifier enabled this
	// field is not consulted: a query the classifier marks neither
	// keyword-heavy nor semantic gets the classifier's fixed 0.90.
	HybridVectorWeight float64 `yaml:"hybrid_vector_weight"`

	// EnableQueryClassifier turns on per-query α selection. If false, α is
	// fixed at HybridVectorWeight for every query.
	EnableQueryClassifier bool `yaml:"enable_query_classifier"`

	// EnableReranking gates the optional cross-encoder Stage 2.
	EnableReranking bool `yaml:"enable_reranking"`

	// SimilarityThreshold filters fused results below this score.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// TopKDefault is the result count used when a caller passes k<=0.
	TopKDefault int `yaml:"top_k_default"`

	// BM25 holds the sparse index's scoring constants.
	BM25 BM25Config `yaml:"bm25"`

	// Reranker holds the cross-encoder blend settings.
	Reranker RerankerConfig `yaml:"reranker"`

	// Chunker holds the semantic chunker's thresholds.
	Chunker ChunkerConfig `yaml:"chunker"`

	// Cache holds the external fetch cache's TTL and summarization limits.
	Cache CacheConfig `yaml:"cache"`

	// MetadataBoost holds the optional recency/authority multipliers
	// applied on top of the fused score. Zero weights disable the boost.
	MetadataBoost MetadataBoostConfig `yaml:"metadata_boost"`
}

// BM25Config holds the sparse index's scoring constants.
type BM25Config struct {
	// K1 controls term-frequency saturation.
	K1 float64 `yaml:"k1"`
	// B controls document-length normalization.
	B float64 `yaml:"b"`
}

// RerankerConfig holds the cross-encoder reranker's settings.
type RerankerConfig struct {
	// FusionWeight (w_v) weights the fusion score against the
	// cross-encoder score in the blended final score.
	FusionWeight float64 `yaml:"fusion_weight"`
}

// ChunkerConfig holds the semantic chunker's split thresholds.
type ChunkerConfig struct {
	// MinChars is the minimum chunk size; smaller chunks are merged into
	// a neighbor.
	MinChars int `yaml:"min_chars"`
	// MaxChars is the maximum chunk size; a chunk is force-split beyond
	// this length regardless of similarity.
	MaxChars int `yaml:"max_chars"`
	// AbsoluteFloor is the minimum split threshold regardless of the
	// observed similarity distribution (max(AbsoluteFloor, percentile)).
	AbsoluteFloor float64 `yaml:"absolute_floor"`
	// Percentile is p in the adaptive split threshold: the threshold is the
	// (100-p)th percentile of consecutive-sentence similarities.
	Percentile int `yaml:"percentile"`
}

// CacheConfig holds the external fetch cache's TTL and summarization limits.
type CacheConfig struct {
	// TTLSeconds is how long a cached fetch record remains valid.
	TTLSeconds int `yaml:"ttl_seconds"`
	// HTTPTimeoutSeconds bounds each live fetch.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
	// MaxSummaryInputChars truncates fetched content before summarization.
	MaxSummaryInputChars int `yaml:"max_summary_input_chars"`
	// SummaryMaxWords bounds the generated summary length.
	SummaryMaxWords int `yaml:"summary_max_words"`
}

// MetadataBoostConfig holds the optional recency/authority score boost.
type MetadataBoostConfig struct {
	// WRecency weights a result's recency score.
	WRecency float64 `yaml:"w_recency"`
	// WAuthority weights a result's authority score.
	WAuthority float64 `yaml:"w_authority"`
}

// Default returns a Config populated with the documented defaults. It can
// be used as-is, or overlaid with LoadFromYAML.
func Default() *Config {
	return &Config{
		ShortTermWindow:       4,
		HybridVectorWeight:    0.90,
		EnableQueryClassifier: true,
		EnableReranking:       false,
		SimilarityThreshold:   0.0,
		TopKDefault:           5,
		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Reranker: RerankerConfig{
			FusionWeight: 0.7,
		},
		Chunker: ChunkerConfig{
			MinChars:      100,
			MaxChars:      500,
			AbsoluteFloor: 0.5,
			Percentile:    75,
		},
		Cache: CacheConfig{
			TTLSeconds:           86400,
			HTTPTimeoutSeconds:   10,
			MaxSummaryInputChars: 3000,
			SummaryMaxWords:      300,
		},
		MetadataBoost: MetadataBoostConfig{
			WRecency:   0.0,
			WAuthority: 0.0,
		},
	}
}

// LoadFromYAML reads a YAML file at path and overlays its values onto a
// copy of Default(). Fields absent from the file keep their default value.
func LoadFromYAML(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.ShortTermWindow <= 0 {
		return fmt.Errorf("config: short_term_window must be positive, got %d", c.ShortTermWindow)
	}
	if c.HybridVectorWeight < 0 || c.HybridVectorWeight > 1 {
		return fmt.Errorf("config: hybrid_vector_weight must be in [0,1], got %f", c.HybridVectorWeight)
	}
	if c.Reranker.FusionWeight < 0 || c.Reranker.FusionWeight > 1 {
		return fmt.Errorf("config: reranker.fusion_weight must be in [0,1], got %f", c.Reranker.FusionWeight)
	}
	if c.TopKDefault <= 0 {
		return fmt.Errorf("config: top_k_default must be positive, got %d", c.TopKDefault)
	}
	if c.BM25.K1 <= 0 {
		return fmt.Errorf("config: bm25.k1 must be positive, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("config: bm25.b must be in [0,1], got %f", c.BM25.B)
	}
	if c.Chunker.MinChars <= 0 || c.Chunker.MaxChars <= c.Chunker.MinChars {
		return fmt.Errorf("config: chunker.max_chars must exceed chunker.min_chars (got min=%d max=%d)",
			c.Chunker.MinChars, c.Chunker.MaxChars)
	}
	if c.Chunker.Percentile < 0 || c.Chunker.Percentile > 100 {
		return fmt.Errorf("config: chunker.percentile must be in [0,100], got %d", c.Chunker.Percentile)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("config: cache.ttl_seconds must be positive, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("config: cache.http_timeout_seconds must be positive, got %d", c.Cache.HTTPTimeoutSeconds)
	}
	return nil
}

// String returns a compact representation suitable for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{window=%d alpha=%.2f classifier=%v rerank=%v topK=%d bm25=(%.2f,%.2f)}",
		c.ShortTermWindow, c.HybridVectorWeight, c.EnableQueryClassifier,
		c.EnableReranking, c.TopKDefault, c.BM25.K1, c.BM25.B,
	)
}
