package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
	"github.com/orneryd/memorycore/pkg/search"
)

func testStoreConfig() *config.Config {
	cfg := config.Default()
	cfg.EnableQueryClassifier = false
	cfg.HybridVectorWeight = 0.5
	cfg.SimilarityThreshold = 0.0
	return cfg
}

func newTestStore(t *testing.T) *LongTermStore {
	t.Helper()
	return NewLongTermStore(testStoreConfig(), embed.NewStaticEmbedder(16), nil, nil)
}

func TestLongTermStoreInsertRejectsEmptyText(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Insert(context.Background(), "   ", nil)
	assert.Error(t, err)
}

func TestLongTermStoreInsertAndCount(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Insert(context.Background(), "The capital of France is Paris", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.Count())
}

func TestLongTermStoreInsertionVisibility(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, "The capital of France is Paris", nil)
	require.NoError(t, err)

	results, err := store.Search(ctx, "The capital of France is Paris", 1, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestLongTermStoreRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, "unique removable text", nil)
	require.NoError(t, err)

	assert.True(t, store.Remove(id))
	assert.False(t, store.Remove(id)) // already gone

	results, err := store.Search(ctx, "unique removable text", 5, SearchOptions{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, id, r.ID)
	}
}

func TestLongTermStoreClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "one", nil)
	require.NoError(t, err)
	_, err = store.Insert(ctx, "two", nil)
	require.NoError(t, err)

	store.Clear()
	assert.Equal(t, 0, store.Count())
}

func TestLongTermStoreSearchLexicalDisambiguation(t *testing.T) {
	// Pinned to the sparse side: the static hash embedder carries no real
	// semantic signal, so this isolates the BM25 disambiguation the
	// scenario is actually testing.
	cfg := testStoreConfig()
	cfg.HybridVectorWeight = 0.0
	store := NewLongTermStore(cfg, embed.NewStaticEmbedder(16), nil, nil)
	ctx := context.Background()

	_, err := store.Insert(ctx, "The capital of France is Paris", nil)
	require.NoError(t, err)
	idB, err := store.Insert(ctx, "The capital of Italy is Rome", nil)
	require.NoError(t, err)
	_, err = store.Insert(ctx, "Paris is known for the Eiffel Tower", nil)
	require.NoError(t, err)

	results, err := store.Search(ctx, "What is the capital of Italy?", 3, SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, idB, results[0].ID)
}

func TestLongTermStoreSearchAppliesThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "completely unrelated filler text about gardening", nil)
	require.NoError(t, err)

	threshold := 1.5 // above any achievable score
	results, err := store.Search(ctx, "gardening", 5, SearchOptions{Threshold: &threshold})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLongTermStoreSearchDefaultsKToConfig(t *testing.T) {
	cfg := testStoreConfig()
	cfg.TopKDefault = 1
	store := NewLongTermStore(cfg, embed.NewStaticEmbedder(16), nil, nil)
	ctx := context.Background()

	for _, text := range []string{"alpha text", "beta text", "gamma text"} {
		_, err := store.Insert(ctx, text, nil)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, "text", 0, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLongTermStoreSearchRerankBoundedByPool(t *testing.T) {
	var mu sync.Mutex
	var batchSizes []int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		batchSizes = append(batchSizes, len(req.Documents))
		mu.Unlock()

		scores := make([]float64, len(req.Documents))
		for i := range scores {
			scores[i] = float64(len(scores)-i) / float64(len(scores))
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer server.Close()

	cfg := testStoreConfig()
	cfg.EnableReranking = true
	// TopK far above the store's pool, so the candidate bound under test is
	// the store's own, not the cross-encoder client's.
	reranker := search.NewCrossEncoder(&search.CrossEncoderConfig{
		Enabled: true,
		APIURL:  server.URL,
		TopK:    100,
		Timeout: 5 * time.Second,
	})
	store := NewLongTermStore(cfg, embed.NewStaticEmbedder(16), reranker, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.Insert(ctx, fmt.Sprintf("shared keyword document number %d", i), nil)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, "shared keyword", 1, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// k=1 widens retrieval to a rerank pool of 4*k per side; the union may
	// exceed that, but the cross-encoder must only ever see the top pool.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batchSizes, 1)
	assert.Greater(t, batchSizes[0], 0)
	assert.LessOrEqual(t, batchSizes[0], 4)
}

func TestLongTermStoreSearchDegradedRerankerPreservesFusionOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	newStore := func(reranking bool) *LongTermStore {
		cfg := testStoreConfig()
		cfg.EnableReranking = reranking
		var reranker *search.CrossEncoder
		if reranking {
			reranker = search.NewCrossEncoder(&search.CrossEncoderConfig{
				Enabled: true,
				APIURL:  server.URL,
				Timeout: 5 * time.Second,
			})
		}
		return NewLongTermStore(cfg, embed.NewStaticEmbedder(16), reranker, nil)
	}

	plain := newStore(false)
	degraded := newStore(true)
	ctx := context.Background()

	for _, text := range []string{"one fish two fish", "red fish blue fish", "cat in the hat"} {
		_, err := plain.Insert(ctx, text, nil)
		require.NoError(t, err)
		_, err = degraded.Insert(ctx, text, nil)
		require.NoError(t, err)
	}

	want, err := plain.Search(ctx, "fish", 3, SearchOptions{})
	require.NoError(t, err)
	got, err := degraded.Search(ctx, "fish", 3, SearchOptions{})
	require.NoError(t, err) // reranker failures never surface

	// Ids are minted per store, so compare by text: the failing
	// cross-encoder must leave order, scores, and ranks at their fusion
	// values.
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Text, got[i].Text)
		assert.Equal(t, want[i].Score, got[i].Score)
		assert.Equal(t, want[i].Rank, got[i].Rank)
	}
}

func TestLongTermStoreConcurrentInsertSearchRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 8

	var wg sync.WaitGroup
	ids := make(chan string, writers*perWriter)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id, err := store.Insert(ctx, fmt.Sprintf("turn %d from writer %d about shared topics", i, w), nil)
				if err == nil {
					ids <- id
				}
				_, _ = store.Search(ctx, "shared topics", 5, SearchOptions{})
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	inserted := make(map[string]bool)
	for id := range ids {
		inserted[id] = true
	}
	assert.Equal(t, len(inserted), store.Count())

	// No dangling ids: every result maps back to a successful insert with
	// its text intact.
	results, err := store.Search(ctx, "shared topics", 10, SearchOptions{})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, inserted[r.ID])
		assert.NotEmpty(t, r.Text)
	}

	for id := range inserted {
		assert.True(t, store.Remove(id))
	}
	assert.Equal(t, 0, store.Count())
}

func TestLongTermStoreDeterministicRepeatedSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one fish two fish", "red fish blue fish", "cat in the hat"} {
		_, err := store.Insert(ctx, text, nil)
		require.NoError(t, err)
	}

	first, err := store.Search(ctx, "fish", 3, SearchOptions{})
	require.NoError(t, err)
	second, err := store.Search(ctx, "fish", 3, SearchOptions{})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Score, second[i].Score)
		assert.Equal(t, first[i].Rank, second[i].Rank)
	}
}
