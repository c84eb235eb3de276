package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/memorycore/pkg/config"
)

type stubFetcher struct {
	body []byte
	err  error
	n    int
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	s.n++
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		TTLSeconds:           86400,
		HTTPTimeoutSeconds:   10,
		MaxSummaryInputChars: 3000,
		SummaryMaxWords:      300,
	}
}

func TestFetchCacheLiveThenCached(t *testing.T) {
	dir := t.TempDir()
	stub := &stubFetcher{body: []byte("<html><body><p>Hello world</p></body></html>")}

	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{
		Path:    filepath.Join(dir, "cache.json"),
		Fetcher: stub,
	})

	first, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.True(t, first.Live)
	assert.True(t, first.OK)
	assert.Contains(t, first.Summary, "Hello world")

	second, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, 1, stub.n) // second call never hit the network
}

func TestFetchCacheForceBypassesCache(t *testing.T) {
	dir := t.TempDir()
	stub := &stubFetcher{body: []byte("<p>content</p>")}

	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{
		Path:    filepath.Join(dir, "cache.json"),
		Fetcher: stub,
	})

	_, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	_, err = fc.Fetch(context.Background(), "https://example.com", true)
	require.NoError(t, err)

	assert.Equal(t, 2, stub.n)
}

func TestFetchCacheNetworkFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	stub := &stubFetcher{err: errors.New("connection refused")}

	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{
		Path:    filepath.Join(dir, "cache.json"),
		Fetcher: stub,
	})

	result, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err) // network failures are never surfaced as errors
	assert.False(t, result.OK)
	assert.False(t, result.Live)
	assert.Contains(t, result.Summary, "Error fetching URL:")
}

func TestFetchCacheRejectsEmptyURL(t *testing.T) {
	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{Path: ""})
	_, err := fc.Fetch(context.Background(), "  ", false)
	assert.Error(t, err)
}

func TestFetchCacheSummarizerFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	stub := &stubFetcher{body: []byte("<p>some content here</p>")}

	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{
		Path:    filepath.Join(dir, "cache.json"),
		Fetcher: stub,
		Summarizer: func(context.Context, string) (string, error) {
			return "", errors.New("summarizer unavailable")
		},
	})

	result, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "[SUMMARY UNAVAILABLE]")
}

func TestFetchCacheSummarizerUsedWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	stub := &stubFetcher{body: []byte("<p>some content here</p>")}

	fc := NewFetchCache(testCacheConfig(), FetchCacheOptions{
		Path:    filepath.Join(dir, "cache.json"),
		Fetcher: stub,
		Summarizer: func(_ context.Context, text string) (string, error) {
			return "SUMMARY: " + text, nil
		},
	})

	result, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "SUMMARY:")
}

func TestFetchCacheSummaryCappedToMaxWords(t *testing.T) {
	cfg := testCacheConfig()
	cfg.SummaryMaxWords = 5

	stub := &stubFetcher{body: []byte("<p>" + strings.Repeat("word ", 50) + "</p>")}
	fc := NewFetchCache(cfg, FetchCacheOptions{
		Path:    filepath.Join(t.TempDir(), "cache.json"),
		Fetcher: stub,
		Summarizer: func(_ context.Context, text string) (string, error) {
			return text, nil
		},
	})

	result, err := fc.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(result.Summary), 5)
}

func TestFetchCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	stub := &stubFetcher{body: []byte("<p>persisted content</p>")}

	fc1 := NewFetchCache(testCacheConfig(), FetchCacheOptions{Path: path, Fetcher: stub})
	first, err := fc1.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	fc2 := NewFetchCache(testCacheConfig(), FetchCacheOptions{Path: path, Fetcher: &stubFetcher{err: errors.New("should not be called")}})
	second, err := fc2.Fetch(context.Background(), "https://example.com", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestStripHTMLRemovesNonContentTags(t *testing.T) {
	html := `<html><head><script>evil()</script></head>` +
		`<body><nav>menu</nav><p>Real content here</p><footer>copyright</footer></body></html>`

	out := stripHTML([]byte(html))
	assert.Contains(t, out, "Real content here")
	assert.NotContains(t, out, "evil()")
	assert.NotContains(t, out, "menu")
	assert.NotContains(t, out, "copyright")
}
