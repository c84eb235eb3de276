package memory

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
	"github.com/orneryd/memorycore/pkg/search"
)

// chunkThreshold is the content length above which AddInteraction splits a
// turn into multiple Memory Entries before inserting into the Long-Term
// Store.
const chunkThreshold = 800

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Zone markers. Offsets of these literal strings in BuildContextPayload's
// output must appear in this fixed order whenever the zone they head is
// present.
const (
	zoneSystemPrompt = "[ZONE 1: SYSTEM PROMPT]"
	zoneEvidence     = "[ZONE 2: RETRIEVED EVIDENCE]"
	zoneNoEvidence   = "[NO EXTERNAL EVIDENCE RETRIEVED]"
	zoneShortTerm    = "[ZONE 3: SHORT-TERM MEMORY]"
	zoneCurrentTask  = "[ZONE 4: CURRENT TASK]"
	liveWebSubheader = "LIVE WEB CONTENT"
)

// InteractionResult reports what AddInteraction did with a turn.
type InteractionResult struct {
	Turn          int
	ChunkCount    int
	LongTermIDs   []string
	ShortTermOnly bool
}

// ContextOptions controls which zones BuildContextPayload assembles and how
// Zone 2 is populated. Both zones are included by default; the zero value
// of ContextOptions therefore assembles the full four-zone payload.
type ContextOptions struct {
	SkipLong   bool   // true omits Zone 2 entirely
	SkipShort  bool   // true omits Zone 3 entirely
	Query      string // overrides currentTask as the Zone 2 retrieval query
	K          int
	EnableWeb  bool // fetch the first URL in currentTask into Zone 2
	RenderFull int  // 0 = render all of Zone 3; otherwise the last N messages
}

// ManagerSummary reports orchestrator state for diagnostics.
type ManagerSummary struct {
	TurnCounter    int
	ShortTermCount int
	LongTermCount  int
	Backend        string
}

// Manager is the top-level orchestrator: it owns one Long-Term Store, one
// Short-Term Buffer, the Semantic Chunker, and the External Fetch Cache,
// and exposes the module's public API.
//
// Assembles a fixed four-zone context payload: Zone 1 (system prompt),
// Zone 2 (retrieved evidence, long-term plus optional live web), Zone 3
// (short-term dump), Zone 4 (current task), in that order.
type Manager struct {
	cfg *config.Config

	long   *LongTermStore
	short  *ShortTermBuffer
	chunks *Chunker
	fetch  *FetchCache

	logger *slog.Logger

	mu        sync.Mutex
	debateID  string
	turnCount int32
}

// ManagerOptions bundles the collaborators a Manager is built from. Fetch
// may be nil, in which case BuildContextPayload never attempts live web
// fetches regardless of ContextOptions.EnableWeb.
type ManagerOptions struct {
	Embedder embed.Embedder
	Reranker *search.CrossEncoder // nil disables reranking
	Fetch    *FetchCache
	Logger   *slog.Logger
}

// NewManager wires a Manager from cfg and opts, constructing its own
// Long-Term Store, Short-Term Buffer, and Chunker from the shared embedder.
func NewManager(cfg *config.Config, opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		long:   NewLongTermStore(cfg, opts.Embedder, opts.Reranker, logger),
		short:  NewShortTermBuffer(cfg.ShortTermWindow),
		chunks: NewChunker(cfg.Chunker, opts.Embedder),
		fetch:  opts.Fetch,
		logger: logger,
	}
}

// Insert passes through to the Long-Term Store, bypassing the Short-Term
// Buffer and the turn counter entirely.
func (m *Manager) Insert(ctx context.Context, text string, metadata Metadata) (string, error) {
	return m.long.Insert(ctx, text, metadata)
}

// Search passes through to the Long-Term Store.
func (m *Manager) Search(ctx context.Context, query string, k int, opts SearchOptions) ([]RetrievalResult, error) {
	return m.long.Search(ctx, query, k, opts)
}

// SetContext starts a new conversation: the turn counter resets to 0 and
// the Short-Term Buffer is cleared, but the Long-Term Store is preserved
// across conversations.
func (m *Manager) SetContext(debateID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.debateID = debateID
	atomic.StoreInt32(&m.turnCount, 0)
	m.short.Clear()
}

// AddInteraction pushes a turn into the Short-Term Buffer and, when
// storeLong is true, into the Long-Term Store as well — chunking first if
// content exceeds the chunk threshold, with each chunk inserted as its own
// entry sharing the parent metadata plus a chunk index. The turn counter
// always advances, regardless of storeLong.
func (m *Manager) AddInteraction(ctx context.Context, role, content string, metadata Metadata, storeLong bool) (InteractionResult, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return InteractionResult{}, newErrorf(KindInvalidInput, "manager: content must be non-empty")
	}

	turn := int(atomic.AddInt32(&m.turnCount, 1))

	stamped := metadata.Clone()
	if stamped == nil {
		stamped = Metadata{}
	}
	stamped["turn"] = turn
	stamped["role"] = role

	m.short.Push(role, trimmed, stamped)

	if !storeLong {
		return InteractionResult{Turn: turn, ShortTermOnly: true}, nil
	}

	pieces := []string{trimmed}
	if len(trimmed) > chunkThreshold {
		chunks, err := m.chunks.Split(ctx, trimmed)
		if err != nil {
			return InteractionResult{}, err
		}
		pieces = make([]string, len(chunks))
		for i, c := range chunks {
			pieces[i] = c.Text
		}
	}

	ids := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		pieceMeta := stamped.Clone()
		if len(pieces) > 1 {
			pieceMeta["chunk_index"] = i
		}
		id, err := m.long.Insert(ctx, piece, pieceMeta)
		if err != nil {
			m.logger.Warn("manager: chunk insert failed", "turn", turn, "chunk", i, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	return InteractionResult{Turn: turn, ChunkCount: len(pieces), LongTermIDs: ids}, nil
}

// BuildContextPayload assembles the four-zone context string. Zone order is
// fixed; Zone 2 is replaced by the literal no-evidence marker when the
// long-term search returns nothing, and either of Zone 2/Zone 3 may be
// omitted entirely via opts.
func (m *Manager) BuildContextPayload(ctx context.Context, systemPrompt, currentTask string, opts ContextOptions) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n%s\n\n", zoneSystemPrompt, systemPrompt)

	if !opts.SkipLong {
		query := opts.Query
		if query == "" {
			query = currentTask
		}
		k := opts.K
		if k <= 0 {
			k = m.cfg.TopKDefault
		}

		hits, err := m.long.Search(ctx, query, k, SearchOptions{})
		if err != nil {
			return "", err
		}

		// Buffer the candidate Zone 2 body before deciding which header to
		// print: the web fetch may find no URL or may itself fail, and
		// neither case should leave a bare [ZONE 2] header with nothing
		// under it.
		var body strings.Builder
		for _, h := range hits {
			fmt.Fprintf(&body, "- (%.4f) %s\n", h.Score, h.Text)
		}

		if opts.EnableWeb && m.fetch != nil {
			if url := firstURL(currentTask); url != "" {
				result, err := m.fetch.Fetch(ctx, url, false)
				if err != nil {
					m.logger.Warn("manager: live web fetch failed", "url", url, "error", err)
				} else if result.OK {
					fmt.Fprintf(&body, "\n--- %s (%s) ---\n%s\n", liveWebSubheader, url, result.Summary)
				} else {
					m.logger.Warn("manager: live web fetch failed", "url", url, "summary", result.Summary)
				}
			}
		}

		if body.Len() == 0 {
			fmt.Fprintf(&sb, "%s\n\n", zoneNoEvidence)
		} else {
			fmt.Fprintf(&sb, "%s\n", zoneEvidence)
			sb.WriteString(body.String())
			sb.WriteByte('\n')
		}
	}

	if !opts.SkipShort {
		fmt.Fprintf(&sb, "%s\n%s\n\n", zoneShortTerm, m.short.Render(opts.RenderFull, Conversational))
	}

	fmt.Fprintf(&sb, "%s\n%s", zoneCurrentTask, currentTask)

	return sb.String(), nil
}

// firstURL returns the first http(s) URL found in text, or "" if none.
func firstURL(text string) string {
	return urlPattern.FindString(text)
}

// Summary reports orchestrator state for diagnostics, logging it at Info
// level on every call — the one structured status snapshot this package
// emits.
func (m *Manager) Summary() ManagerSummary {
	s := ManagerSummary{
		TurnCounter:    int(atomic.LoadInt32(&m.turnCount)),
		ShortTermCount: m.short.Count(),
		LongTermCount:  m.long.Count(),
		Backend:        "hybrid(dense+sparse)",
	}

	m.logger.Info("manager: summary",
		"turn_counter", s.TurnCounter,
		"short_term_count", s.ShortTermCount,
		"long_term_count", s.LongTermCount,
		"backend", s.Backend,
	)

	return s
}

// ClearAll resets both the Long-Term Store and the Short-Term Buffer, and
// zeroes the turn counter. It does not touch the Fetch Cache.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.long.Clear()
	m.short.Clear()
	atomic.StoreInt32(&m.turnCount, 0)
}
