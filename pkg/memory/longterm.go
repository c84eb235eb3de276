package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
	"github.com/orneryd/memorycore/pkg/search"
)

// SearchOptions overrides LongTermStore.Search's defaults for a single
// call. A nil pointer field means "use the store's configured default".
type SearchOptions struct {
	Threshold     *float64
	EnableRerank  *bool
	MetadataBoost *search.MetadataBoostWeights
}

// LongTermStore is the long-term store: it exclusively owns one Dense
// Index, one Sparse Index, and the id->(text, metadata) map, and serializes
// writes against concurrent readers with a single-writer/multi-reader
// discipline.
//
// Dense and sparse retrieval are dispatched in parallel and joined before
// fusion; if one side errors the call degrades to the surviving side rather
// than failing outright.
type LongTermStore struct {
	mu sync.RWMutex

	dense    *search.VectorIndex
	sparse   *search.FulltextIndex
	embedder embed.Embedder
	reranker *search.CrossEncoder // nil disables reranking regardless of cfg

	cfg    *config.Config
	texts  map[string]string
	meta   map[string]Metadata
	logger *slog.Logger
}

// NewLongTermStore creates a store whose dense index has embedder's
// dimensionality. reranker may be nil, in which case reranking is always
// skipped regardless of configuration.
func NewLongTermStore(cfg *config.Config, embedder embed.Embedder, reranker *search.CrossEncoder, logger *slog.Logger) *LongTermStore {
	if logger == nil {
		logger = slog.Default()
	}
	// The store's config supplies the blend weight when the injected
	// reranker handle doesn't set one of its own.
	if reranker != nil && reranker.Config().FusionWeight == 0 {
		reranker.Config().FusionWeight = cfg.Reranker.FusionWeight
	}
	return &LongTermStore{
		dense:    search.NewVectorIndex(embedder.Dimensions()),
		sparse:   search.NewFulltextIndexWithParams(cfg.BM25.K1, cfg.BM25.B),
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
		texts:    make(map[string]string),
		meta:     make(map[string]Metadata),
		logger:   logger,
	}
}

// Insert embeds text, adds it to both indices under a fresh id, and
// records its metadata. Rejects empty (post-trim) text.
func (s *LongTermStore) Insert(ctx context.Context, text string, metadata Metadata) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", newErrorf(KindInvalidInput, "longterm: text must be non-empty")
	}

	vec, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		return "", newError(KindEmbeddingFailure, err)
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dense.Add(id, vec); err != nil {
		return "", newError(KindIndexFailure, err)
	}
	s.sparse.Index(id, trimmed)
	s.texts[id] = trimmed
	s.meta[id] = metadata.Clone()

	return id, nil
}

// Remove deletes id from both indices and the metadata map, reporting
// whether it was present.
func (s *LongTermStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.texts[id]
	if !existed {
		return false
	}

	s.dense.Remove(id)
	s.sparse.Remove(id)
	delete(s.texts, id)
	delete(s.meta, id)
	return true
}

// Clear drops every entry from both indices and the metadata map.
func (s *LongTermStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dense = search.NewVectorIndex(s.dense.Dimensions())
	s.sparse = search.NewFulltextIndexWithParams(s.cfg.BM25.K1, s.cfg.BM25.B)
	s.texts = make(map[string]string)
	s.meta = make(map[string]Metadata)
}

// Count returns the number of indexed entries.
func (s *LongTermStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Search runs the dense and sparse retrieval in parallel, fuses them,
// optionally reranks, applies the threshold, and returns the top k.
func (s *LongTermStore) Search(ctx context.Context, query string, k int, opts SearchOptions) ([]RetrievalResult, error) {
	if k <= 0 {
		k = s.cfg.TopKDefault
	}

	enableRerank := s.cfg.EnableReranking && s.reranker != nil
	if opts.EnableRerank != nil {
		enableRerank = *opts.EnableRerank && s.reranker != nil
	}

	pool := k
	if enableRerank {
		pool = 4 * k
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, newError(KindEmbeddingFailure, err)
	}

	denseHits, sparseHits, err := s.retrieveParallel(ctx, query, queryVec, pool)
	if err != nil {
		return nil, err
	}

	boost := s.cfg.MetadataBoost
	weights := search.MetadataBoostWeights{Recency: boost.WRecency, Authority: boost.WAuthority}
	if opts.MetadataBoost != nil {
		weights = *opts.MetadataBoost
	}

	s.mu.RLock()
	metaScores := make(map[string]search.MetadataScores, len(denseHits)+len(sparseHits))
	texts := make(map[string]string, pool)
	for _, h := range append(append([]search.IndexHit{}, denseHits...), sparseHits...) {
		if _, ok := texts[h.ID]; ok {
			continue
		}
		texts[h.ID] = s.texts[h.ID]
		m := s.meta[h.ID]
		metaScores[h.ID] = search.MetadataScores{Recency: m.Float("recency_score"), Authority: m.Float("authority_score")}
	}
	s.mu.RUnlock()

	var alpha float64
	if s.cfg.EnableQueryClassifier {
		alpha = search.ClassifyAlpha(query)
	} else {
		alpha = s.cfg.HybridVectorWeight
	}
	fused := search.FuseWithAlpha(alpha, denseHits, sparseHits, weights, metaScores)

	results := s.toRetrievalResults(fused, texts)

	if enableRerank {
		// The fused union can hold up to one entry per hit from each side;
		// only the top of the rerank pool goes to the cross-encoder.
		if len(results) > pool {
			results = results[:pool]
		}
		results = s.rerank(ctx, query, results)
	}

	threshold := s.cfg.SimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	filtered := make([]RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}

	return filtered, nil
}

// retrieveParallel issues the dense and sparse searches concurrently via
// errgroup, degrading to the surviving side if exactly one fails.
func (s *LongTermStore) retrieveParallel(ctx context.Context, query string, queryVec []float32, pool int) ([]search.IndexHit, []search.IndexHit, error) {
	var denseHits, sparseHits []search.IndexHit
	var denseErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.mu.RLock()
		dense := s.dense
		s.mu.RUnlock()
		hits, err := dense.Search(gctx, queryVec, pool, -1)
		if err != nil {
			denseErr = err
			s.logger.Warn("longterm: dense search failed, degrading to sparse-only", "error", err)
			return nil // don't cancel the sparse side
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		s.mu.RLock()
		sparse := s.sparse
		sparseHits = sparse.Search(query, pool)
		s.mu.RUnlock()
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && len(sparseHits) == 0 {
		return nil, nil, newError(KindIndexFailure, denseErr)
	}
	return denseHits, sparseHits, nil
}

func (s *LongTermStore) toRetrievalResults(fused []search.FusedResult, texts map[string]string) []RetrievalResult {
	out := make([]RetrievalResult, len(fused))
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, f := range fused {
		final := f.Final
		out[i] = RetrievalResult{
			ID:    f.ID,
			Text:  texts[f.ID],
			Score: final,
			Scores: ScoreComponents{
				Vector:  f.DenseNorm,
				Lexical: f.SparseNorm,
				Final:   final,
			},
			Metadata: s.meta[f.ID],
		}
	}
	return out
}

// rerank passes the fused candidates through the cross-encoder and, on
// success, rewrites
// Score/Scores.Hybrid/Scores.Final with the blended result. A reranker
// failure is swallowed: the fusion order is returned unchanged.
func (s *LongTermStore) rerank(ctx context.Context, query string, results []RetrievalResult) []RetrievalResult {
	candidates := make([]search.RerankCandidate, len(results))
	for i, r := range results {
		candidates[i] = search.RerankCandidate{ID: r.ID, Content: r.Text, Score: r.Score}
	}

	reranked, err := s.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		s.logger.Warn("longterm: reranker failed, preserving fusion order", "error", err)
		return results
	}

	byID := make(map[string]RetrievalResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	out := make([]RetrievalResult, 0, len(reranked))
	for _, rr := range reranked {
		base := byID[rr.ID]
		hybrid := base.Score
		base.Scores.Hybrid = &hybrid
		base.Score = rr.FinalScore
		base.Scores.Final = rr.FinalScore
		out = append(out, base)
	}
	return out
}
