package search

import "sort"

// MetadataBoostWeights configures the optional post-fusion metadata boost.
// Both weights default to 0, making the boost a no-op unless configured.
type MetadataBoostWeights struct {
	Recency   float64 // w_r
	Authority float64 // w_a
}

// MetadataScores carries the per-id recency/authority inputs to the boost
// step. Absent ids are treated as 0 for both scores.
type MetadataScores struct {
	Recency   float64
	Authority float64
}

// FusedResult is a single ranked entry produced by Fuse, carrying both
// component scores that fed into the final score.
type FusedResult struct {
	ID         string
	Final      float64
	DenseNorm  float64
	SparseNorm float64
	Rank       int
}

// Fuse combines dense and sparse hits into a single ranked list.
//
// Each score list is min-max normalized to [0,1] independently (a list with
// fewer than two distinct values maps every entry to 0.5, since min-max
// normalization is undefined when there's no spread). The two normalized
// lists are then combined with a query-dependent weight alpha, computed by
// ClassifyAlpha: final = alpha*dense_norm + (1-alpha)*sparse_norm. An
// optional metadata boost can be layered on afterward.
func Fuse(query string, denseHits, sparseHits []IndexHit, boost MetadataBoostWeights, metadata map[string]MetadataScores) []FusedResult {
	return FuseWithAlpha(ClassifyAlpha(query), denseHits, sparseHits, boost, metadata)
}

// FuseWithAlpha is Fuse with an explicit dense-side weight, bypassing query
// classification. Callers that run with the classifier disabled (a fixed
// configured alpha) use this entry point directly.
func FuseWithAlpha(alpha float64, denseHits, sparseHits []IndexHit, boost MetadataBoostWeights, metadata map[string]MetadataScores) []FusedResult {
	denseByID := make(map[string]float64, len(denseHits))
	denseScores := make([]float64, len(denseHits))
	for i, h := range denseHits {
		denseByID[h.ID] = h.Score
		denseScores[i] = h.Score
	}
	sparseByID := make(map[string]float64, len(sparseHits))
	sparseScores := make([]float64, len(sparseHits))
	for i, h := range sparseHits {
		sparseByID[h.ID] = h.Score
		sparseScores[i] = h.Score
	}

	normDense := normalizeByID(minMaxNormalize(denseScores), denseHits)
	normSparse := normalizeByID(minMaxNormalize(sparseScores), sparseHits)

	ids := make(map[string]struct{}, len(denseByID)+len(sparseByID))
	for id := range denseByID {
		ids[id] = struct{}{}
	}
	for id := range sparseByID {
		ids[id] = struct{}{}
	}

	results := make([]FusedResult, 0, len(ids))
	for id := range ids {
		d := normDense[id] // 0 if absent, since a missing side contributes 0
		s := normSparse[id]
		final := alpha*d + (1-alpha)*s

		if boost.Recency != 0 || boost.Authority != 0 {
			m := metadata[id]
			final *= 1 + boost.Recency*m.Recency + boost.Authority*m.Authority
		}

		results = append(results, FusedResult{ID: id, Final: final, DenseNorm: d, SparseNorm: s})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Final != results[j].Final {
			return results[i].Final > results[j].Final
		}
		return results[i].ID < results[j].ID
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}

// normalizeByID maps each hit's id to its position in a parallel normalized
// slice. Ids absent from hits are simply absent from the returned map, which
// callers treat as a 0 contribution.
func normalizeByID(normalized []float64, hits []IndexHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	for i, h := range hits {
		out[h.ID] = normalized[i]
	}
	return out
}

// minMaxNormalize scales values to [0,1]. When fewer than two distinct
// values are present (including the empty case), every entry maps to 0.5 —
// min-max normalization has no meaningful spread to report.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	span := max - min
	for i, v := range values {
		out[i] = (v - min) / span
	}
	return out
}
