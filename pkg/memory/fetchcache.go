package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"

	"github.com/orneryd/memorycore/pkg/config"
)

// nonContentTags are stripped entirely (tag and descendants) before text
// extraction.
var nonContentTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"footer": true, "header": true, "noscript": true,
}

// Fetcher issues the single outbound HTTP GET the External Fetch Cache
// needs. Tests inject a stub; production wiring uses newHTTPFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Summarizer compresses cleaned page text down to a short factual summary.
// A nil Summarizer (or one that errors) degrades to a truncated fallback
// rather than failing the fetch.
type Summarizer func(ctx context.Context, text string) (string, error)

// CacheRecord is the persisted, per-URL cache record.
type CacheRecord struct {
	Summary        string `json:"summary"`
	Timestamp      int64  `json:"timestamp"`
	OriginalLength int    `json:"original_length"`
	SummaryLength  int    `json:"summary_length"`
}

func (r CacheRecord) stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.Unix(r.Timestamp, 0)) > ttl
}

// FetchResult is what Fetch returns to callers: a summary plus flags
// describing where it came from and whether it succeeded.
type FetchResult struct {
	URL     string
	Summary string
	Live    bool // produced by a fresh HTTP fetch this call
	Cached  bool // served from the in-memory or on-disk cache
	OK      bool // false when the live fetch fails; Summary then holds a human message. A summarizer failure keeps OK true and is marked by the "[SUMMARY UNAVAILABLE]" prefix of the fallback Summary
}

// httpFetcher is the default Fetcher: a plain net/http GET with a
// configured User-Agent and per-request timeout.
type httpFetcher struct {
	client    *http.Client
	userAgent string
}

func newHTTPFetcher(timeout time.Duration, userAgent string) *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cache: %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FetchCache is the external fetch cache: URL -> summarized text with
// a TTL, backed by one JSON file, with an in-memory LRU layer in front of
// it and a cross-process file lock guarding the on-disk map.
//
// Persistence uses an atomic-replace pattern (write temp file, Sync,
// Rename) guarded by a gofrs/flock cross-process lock; the in-memory layer
// is a hashicorp/golang-lru/v2 cache, the same library pkg/embed's
// CachedEmbedder uses. Staleness is judged by CacheRecord.Timestamp against
// the configured TTL, not by LRU eviction, so no TTL variant is needed.
type FetchCache struct {
	path       string
	ttl        time.Duration
	maxInput   int
	summaryCap int
	fetcher    Fetcher
	summarizer Summarizer
	fileLock   *flock.Flock
	mem        *lru.Cache[string, CacheRecord]
	logger     *slog.Logger
	mu         sync.Mutex // serializes disk read-modify-write
}

// FetchCacheOptions configures a FetchCache beyond what config.CacheConfig
// covers: the file path, the HTTP fetcher, and the summarizer function.
type FetchCacheOptions struct {
	Path       string
	Fetcher    Fetcher // nil uses newHTTPFetcher with the configured timeout
	Summarizer Summarizer
	UserAgent  string
	Logger     *slog.Logger
}

// NewFetchCache creates a FetchCache persisted at opts.Path.
func NewFetchCache(cfg config.CacheConfig, opts FetchCacheOptions) *FetchCache {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "memorycore-fetchcache/1.0"
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = newHTTPFetcher(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, userAgent)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mem, _ := lru.New[string, CacheRecord](1000) // only errors on size<=0, already a positive literal

	return &FetchCache{
		path:       opts.Path,
		ttl:        time.Duration(cfg.TTLSeconds) * time.Second,
		maxInput:   cfg.MaxSummaryInputChars,
		summaryCap: cfg.SummaryMaxWords,
		fetcher:    fetcher,
		summarizer: opts.Summarizer,
		fileLock:   flock.New(opts.Path + ".lock"),
		mem:        mem,
		logger:     logger,
	}
}

// Fetch returns url's cached summary if fresh, or performs a live fetch,
// summarize, and persist cycle otherwise. It never returns a non-nil error
// for network/summarizer failures: those degrade to FetchResult.OK=false
// with a human-readable Summary instead.
func (f *FetchCache) Fetch(ctx context.Context, url string, force bool) (FetchResult, error) {
	if strings.TrimSpace(url) == "" {
		return FetchResult{}, newErrorf(KindInvalidInput, "fetch cache: empty url")
	}

	now := time.Now()

	if !force {
		if rec, ok := f.lookup(url); ok && !rec.stale(now, f.ttl) {
			return FetchResult{URL: url, Summary: rec.Summary, Cached: true, OK: true}, nil
		}
	}

	body, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		kind := KindNetworkError
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		f.logger.Warn("fetch cache: live fetch failed", "url", url, "kind", kind, "error", err)
		return FetchResult{URL: url, Summary: fmt.Sprintf("Error fetching URL: %v", err)}, nil
	}

	cleaned := stripHTML(body)
	inputLen := f.maxInput
	if inputLen <= 0 || inputLen > len(cleaned) {
		inputLen = len(cleaned)
	}

	summary := capWords(f.summarize(ctx, cleaned[:inputLen]), f.summaryCap)

	rec := CacheRecord{
		Summary:        summary,
		Timestamp:      now.Unix(),
		OriginalLength: len(cleaned),
		SummaryLength:  len(summary),
	}
	if err := f.persist(url, rec); err != nil {
		f.logger.Error("fetch cache: persist failed", "url", url, "error", err)
	}

	return FetchResult{URL: url, Summary: summary, Live: true, OK: true}, nil
}

// summarize calls the configured Summarizer, falling back to a truncated
// fragment when no summarizer is configured or the call fails.
func (f *FetchCache) summarize(ctx context.Context, text string) string {
	if f.summarizer == nil {
		return fallbackSummary(text)
	}

	summary, err := f.summarizer(ctx, text)
	if err != nil {
		f.logger.Warn("fetch cache: summarizer failed, using fallback", "kind", KindSummarizerUnavailable, "error", err)
		return fallbackSummary(text)
	}
	return summary
}

// capWords truncates s to at most max words. max<=0 means unbounded.
func capWords(s string, max int) string {
	if max <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}

func fallbackSummary(text string) string {
	frag := text
	if len(frag) > 500 {
		frag = frag[:500]
	}
	return fmt.Sprintf("[SUMMARY UNAVAILABLE] Raw text fragment: %s...", frag)
}

// lookup checks the in-memory layer first, falling back to the on-disk
// file (the durable source of truth across process restarts).
func (f *FetchCache) lookup(url string) (CacheRecord, bool) {
	if rec, ok := f.mem.Get(url); ok {
		return rec, true
	}

	records, err := f.readAll()
	if err != nil {
		f.logger.Warn("fetch cache: read failed", "error", err)
		return CacheRecord{}, false
	}

	rec, ok := records[url]
	if ok {
		f.mem.Add(url, rec)
	}
	return rec, ok
}

// persist writes rec for url into both the in-memory layer and the
// on-disk file, the latter via read-modify-write under the cross-process
// lock and an atomic temp-file rename.
func (f *FetchCache) persist(url string, rec CacheRecord) error {
	f.mem.Add(url, rec)

	if f.path == "" {
		return nil // no durable layer configured; memory-only cache
	}

	if err := f.fileLock.Lock(); err != nil {
		return fmt.Errorf("fetch cache: acquiring file lock: %w", err)
	}
	defer f.fileLock.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readAllLocked()
	if err != nil {
		return err
	}
	records[url] = rec
	return f.writeAllLocked(records)
}

func (f *FetchCache) readAll() (map[string]CacheRecord, error) {
	if f.path == "" {
		return map[string]CacheRecord{}, nil // no durable layer configured; memory-only cache
	}

	if err := f.fileLock.RLock(); err != nil {
		return nil, fmt.Errorf("fetch cache: acquiring read lock: %w", err)
	}
	defer f.fileLock.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAllLocked()
}

// readAllLocked assumes f.mu and the file lock are already held.
func (f *FetchCache) readAllLocked() (map[string]CacheRecord, error) {
	if f.path == "" {
		return map[string]CacheRecord{}, nil
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]CacheRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch cache: reading %s: %w", f.path, err)
	}

	var records map[string]CacheRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("fetch cache: parsing %s: %w", f.path, err)
	}
	return records, nil
}

// writeAllLocked atomically replaces the cache file using a
// write-temp/Sync/Rename pattern.
func (f *FetchCache) writeAllLocked(records map[string]CacheRecord) error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("fetch cache: creating directory: %w", err)
		}
	}

	tmpPath := f.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("fetch cache: creating temp file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fetch cache: encoding: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fetch cache: syncing: %w", err)
	}
	file.Close()

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fetch cache: renaming: %w", err)
	}
	return nil
}

// stripHTML tokenizes body, discards non-content tags and their
// descendants, and collapses the remaining text into single-spaced words.
func stripHTML(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))

	var sb strings.Builder
	var skipDepth int
	var skipping string

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipDepth > 0 {
				if tag == skipping {
					skipDepth++
				}
				continue
			}
			if nonContentTags[tag] && tt == html.StartTagToken {
				skipping = tag
				skipDepth = 1
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipDepth > 0 {
				if tag == skipping {
					skipDepth--
				}
				continue
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
