// Package search implements the dense and sparse indices, the hybrid
// fusion pipeline, and the optional cross-encoder reranker that together
// make up the memory core's retrieval engine.
package search

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/orneryd/memorycore/pkg/math/vector"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// index's configured dimensionality.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// IndexHit is a single (id, score) pair returned by either index, before
// fusion. Dense scores are cosine similarities in [-1,1]; sparse scores are
// BM25 weights, non-negative and unbounded.
type IndexHit struct {
	ID    string
	Score float64
}

// VectorIndex is an exact, brute-force cosine-similarity index over
// L2-normalized vectors.
//
// It intentionally does not use an approximate nearest-neighbor structure:
// randomized graph construction (as in HNSW) makes ranking non-reproducible
// across runs on an unchanged corpus, which this index's callers rely on for
// deterministic search results.
//
// Vectors are normalized on insertion, so a search's dot product already
// equals cosine similarity — no per-query renormalization of stored vectors
// is needed.
type VectorIndex struct {
	dimensions int
	mu         sync.RWMutex
	vectors    map[string][]float32
}

// NewVectorIndex creates an index for vectors of the given dimensionality.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
	}
}

// Add inserts or replaces the vector for id. Returns ErrDimensionMismatch if
// vec does not match the index's configured dimensions.
func (v *VectorIndex) Add(id string, vec []float32) error {
	if len(vec) != v.dimensions {
		return ErrDimensionMismatch
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[id] = vector.Normalize(vec)
	return nil
}

// Remove deletes the vector for id, if present. A no-op otherwise.
func (v *VectorIndex) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, id)
}

// Search returns up to limit hits with cosine similarity >= minSimilarity,
// sorted by score descending. Ties are broken by id ascending so that
// results are fully deterministic regardless of map iteration order.
func (v *VectorIndex) Search(ctx context.Context, query []float32, limit int, minSimilarity float64) ([]IndexHit, error) {
	if len(query) != v.dimensions {
		return nil, ErrDimensionMismatch
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	normalizedQuery := vector.Normalize(query)

	var results []IndexHit
	for id, vec := range v.vectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sim := vector.DotProduct(normalizedQuery, vec)
		if sim >= minSimilarity {
			results = append(results, IndexHit{ID: id, Score: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of vectors currently indexed.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// HasVector reports whether id is present in the index.
func (v *VectorIndex) HasVector(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, exists := v.vectors[id]
	return exists
}

// Dimensions returns the index's configured vector dimensionality.
func (v *VectorIndex) Dimensions() int {
	return v.dimensions
}
