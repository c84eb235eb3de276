package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
)

func testChunkerConfig() config.ChunkerConfig {
	return config.ChunkerConfig{
		MinChars:      100,
		MaxChars:      500,
		AbsoluteFloor: 0.5,
		Percentile:    75,
	}
}

func TestChunkerSplitEmptyInputYieldsOneEmptyChunk(t *testing.T) {
	c := NewChunker(testChunkerConfig(), embed.NewStaticEmbedder(16))
	chunks, err := c.Split(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Text)
}

func TestChunkerSplitSingleSentenceYieldsOneChunk(t *testing.T) {
	c := NewChunker(testChunkerConfig(), embed.NewStaticEmbedder(16))
	chunks, err := c.Split(context.Background(), "Just one sentence here")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Just one sentence here", chunks[0].Text)
}

func TestChunkerSplitLongInputProducesBoundedChunks(t *testing.T) {
	c := NewChunker(testChunkerConfig(), embed.NewStaticEmbedder(16))

	paragraph1 := strings.Repeat("The weather today is sunny and warm. ", 10)
	paragraph2 := strings.Repeat("Quarterly revenue exceeded analyst expectations. ", 10)
	text := paragraph1 + paragraph2

	chunks, err := c.Split(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), testChunkerConfig().MaxChars)
	}
}

func TestSplitSentencesTrimsAndDropsEmpty(t *testing.T) {
	sentences := splitSentences("One.  Two!   Three?")
	assert.Equal(t, []string{"One.", "Two!", "Three?"}, sentences)
}

func TestBuildChunksRespectsSplitPoints(t *testing.T) {
	sentences := []string{"a", "b", "c", "d"}
	splitAfter := map[int]bool{1: true}

	chunks := buildChunks(sentences, splitAfter)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a b", chunks[0].Text)
	assert.Equal(t, "c d", chunks[1].Text)
}

func TestMergeSmallChunksFoldsIntoFollowing(t *testing.T) {
	chunks := []Chunk{
		{Text: "tiny", StartSentence: 0, EndSentence: 1},
		{Text: strings.Repeat("x", 50), StartSentence: 1, EndSentence: 2},
	}

	merged := mergeSmallChunks(chunks, 10)
	require.Len(t, merged, 1)
	assert.True(t, strings.HasPrefix(merged[0].Text, "tiny x"))
}

func TestMergeSmallChunksLeavesLargeChunksAlone(t *testing.T) {
	big := strings.Repeat("x", 200)
	chunks := []Chunk{{Text: big, StartSentence: 0, EndSentence: 1}}

	merged := mergeSmallChunks(chunks, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, big, merged[0].Text)
}

func TestSplitLargeChunksForceSplitsAtSentenceBoundaries(t *testing.T) {
	sentences := []string{strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40)}
	chunks := []Chunk{{Text: strings.Join(sentences, " "), StartSentence: 0, EndSentence: 3}}

	out := splitLargeChunks(chunks, sentences, 50)
	assert.Greater(t, len(out), 1)
	for _, ch := range out {
		assert.LessOrEqual(t, len(ch.Text), 50)
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, percentile(values, 50), 1e-9)
	assert.InDelta(t, 1.0, percentile(values, 0), 1e-9)
	assert.InDelta(t, 5.0, percentile(values, 100), 1e-9)
}

func TestPercentileEmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 50))
}
