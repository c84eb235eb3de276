package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
	"github.com/orneryd/memorycore/pkg/math/vector"
)

// sentenceBoundary marks a split after runs of sentence-ending punctuation
// followed by whitespace. The punctuation group stays with its sentence.
var sentenceBoundary = regexp.MustCompile(`([.!?]+)\s+`)

// Chunk is a topic-coherent span produced by Chunker.Split, carrying the
// originating sentence range so callers can trace a chunk back to its
// source text.
type Chunk struct {
	Text          string
	StartSentence int // inclusive, 0-based
	EndSentence   int // exclusive
}

// Chunker splits long inputs into semantically coherent chunks by
// embedding each sentence and cutting wherever consecutive-sentence
// similarity drops below an adaptive threshold.
//
// Embeds every sentence, computes consecutive cosine similarities, sets the
// split threshold to max(absolute_floor, percentile(similarities, 100-p)),
// and splits after any sentence whose similarity to its successor falls
// below that threshold.
type Chunker struct {
	cfg      config.ChunkerConfig
	embedder embed.Embedder
}

// NewChunker creates a Chunker using cfg's thresholds and embedder for the
// per-sentence embeddings.
func NewChunker(cfg config.ChunkerConfig, embedder embed.Embedder) *Chunker {
	return &Chunker{cfg: cfg, embedder: embedder}
}

// Split breaks text into chunks. A single-sentence or empty input always
// yields exactly one chunk.
func (c *Chunker) Split(ctx context.Context, text string) ([]Chunk, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []Chunk{{Text: "", StartSentence: 0, EndSentence: 0}}, nil
	}

	sentences := splitSentences(trimmed)
	if len(sentences) <= 1 {
		return []Chunk{{Text: trimmed, StartSentence: 0, EndSentence: len(sentences)}}, nil
	}

	embeddings, err := c.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, newError(KindEmbeddingFailure, err)
	}

	similarities := make([]float64, len(sentences)-1)
	for i := 0; i < len(sentences)-1; i++ {
		similarities[i] = vector.CosineSimilarity(embeddings[i], embeddings[i+1])
	}

	threshold := c.cfg.AbsoluteFloor
	if p := percentile(similarities, float64(100-c.cfg.Percentile)); p > threshold {
		threshold = p
	}

	splitAfter := make(map[int]bool, len(similarities))
	for i, sim := range similarities {
		if sim < threshold {
			splitAfter[i] = true // split after sentence i
		}
	}

	chunks := buildChunks(sentences, splitAfter)
	chunks = mergeSmallChunks(chunks, c.cfg.MinChars)
	chunks = splitLargeChunks(chunks, sentences, c.cfg.MaxChars)
	return chunks, nil
}

// splitSentences cuts text at each sentenceBoundary match, keeping the
// terminating punctuation with its sentence, trimming each result and
// dropping empties.
func splitSentences(text string) []string {
	matches := sentenceBoundary.FindAllStringSubmatchIndex(text, -1)

	out := make([]string, 0, len(matches)+1)
	start := 0
	for _, m := range matches {
		// m[3] is the end of the punctuation group; m[1] the end of the
		// whole match including trailing whitespace.
		if s := strings.TrimSpace(text[start:m[3]]); s != "" {
			out = append(out, s)
		}
		start = m[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}

	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// buildChunks groups sentences into chunks at the positions marked in
// splitAfter (a split occurs immediately after sentence index i).
func buildChunks(sentences []string, splitAfter map[int]bool) []Chunk {
	var chunks []Chunk
	start := 0
	for i := range sentences {
		if splitAfter[i] || i == len(sentences)-1 {
			end := i + 1
			chunks = append(chunks, Chunk{
				Text:          strings.Join(sentences[start:end], " "),
				StartSentence: start,
				EndSentence:   end,
			})
			start = end
		}
	}
	return chunks
}

// mergeSmallChunks folds any chunk shorter than minChars into the chunk
// that follows it.
func mergeSmallChunks(chunks []Chunk, minChars int) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	merged := make([]Chunk, 0, len(chunks))
	current := chunks[0]
	for _, next := range chunks[1:] {
		if len(current.Text) < minChars {
			current = Chunk{
				Text:          current.Text + " " + next.Text,
				StartSentence: current.StartSentence,
				EndSentence:   next.EndSentence,
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

// splitLargeChunks force-splits any chunk longer than maxChars at sentence
// boundaries, keeping each resulting piece under the cap where possible.
func splitLargeChunks(chunks []Chunk, sentences []string, maxChars int) []Chunk {
	var out []Chunk
	for _, ch := range chunks {
		if len(ch.Text) <= maxChars {
			out = append(out, ch)
			continue
		}

		pieceStart := ch.StartSentence
		var builder strings.Builder
		for i := ch.StartSentence; i < ch.EndSentence; i++ {
			candidate := sentences[i]
			if builder.Len() > 0 && builder.Len()+1+len(candidate) > maxChars {
				out = append(out, Chunk{Text: builder.String(), StartSentence: pieceStart, EndSentence: i})
				builder.Reset()
				pieceStart = i
			}
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(candidate)
		}
		if builder.Len() > 0 {
			out = append(out, Chunk{Text: builder.String(), StartSentence: pieceStart, EndSentence: ch.EndSentence})
		}
	}
	return out
}

// percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks. Returns 0 for an empty input.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
