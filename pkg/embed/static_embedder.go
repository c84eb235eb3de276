package embed

import (
	"context"
	"hash/fnv"

	"github.com/orneryd/memorycore/pkg/math/vector"
)

// StaticEmbedder is a deterministic, in-process embedder with no external
// dependency: it hashes input text into a fixed-dimension vector. It exists
// for tests and for environments with no embedding service configured — it
// produces no semantic relationships between texts, only a stable mapping
// from text to vector, which is enough to exercise the dense index, fusion,
// and chunker without a live model.
type StaticEmbedder struct {
	dimensions int
	model      string
}

// NewStaticEmbedder creates a hashing embedder of the given dimensionality.
func NewStaticEmbedder(dimensions int) *StaticEmbedder {
	if dimensions <= 0 {
		dimensions = 32
	}
	return &StaticEmbedder{dimensions: dimensions, model: "static-hash"}
}

// Embed deterministically maps text to a unit vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return hashToVector(text, e.dimensions), nil
}

// EmbedQuery is identical to Embed: the static embedder has no notion of a
// query-side instruction prefix.
func (e *StaticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, text)
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := e.Embed(ctx, text)
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the configured vector dimensionality.
func (e *StaticEmbedder) Dimensions() int { return e.dimensions }

// Model returns a fixed model name identifying this as the static embedder.
func (e *StaticEmbedder) Model() string { return e.model }

// hashToVector expands a text into dimensions float32 values via repeated
// FNV-1a hashing of the text salted by each output index, then L2-normalizes
// the result.
func hashToVector(text string, dimensions int) []float32 {
	out := make([]float32, dimensions)
	for i := 0; i < dimensions; i++ {
		h := fnv.New64a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map to [-1, 1].
		out[i] = float32(sum%2000)/1000 - 1
	}
	return vector.Normalize(out)
}
