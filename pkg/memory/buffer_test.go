package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortTermBufferFIFOEviction(t *testing.T) {
	b := NewShortTermBuffer(3)
	for i := 0; i < 5; i++ {
		b.Push("user", string(rune('A'+i)), nil)
	}

	all := b.All()
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Content)
	assert.Equal(t, "D", all[1].Content)
	assert.Equal(t, "E", all[2].Content)
}

func TestShortTermBufferCapacityClampedToOne(t *testing.T) {
	b := NewShortTermBuffer(0)
	b.Push("user", "a", nil)
	b.Push("user", "b", nil)
	assert.Equal(t, 1, b.Count())
}

func TestShortTermBufferResizeTruncatesFromFront(t *testing.T) {
	b := NewShortTermBuffer(5)
	for i := 0; i < 5; i++ {
		b.Push("user", string(rune('A'+i)), nil)
	}

	b.Resize(2)
	all := b.All()
	require.Len(t, all, 2)
	assert.Equal(t, "D", all[0].Content)
	assert.Equal(t, "E", all[1].Content)
}

func TestShortTermBufferClear(t *testing.T) {
	b := NewShortTermBuffer(3)
	b.Push("user", "a", nil)
	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.Empty(t, b.All())
}

func TestShortTermBufferRenderConversational(t *testing.T) {
	b := NewShortTermBuffer(3)
	b.Push("user", "hello", nil)
	b.Push("assistant", "hi there", nil)

	out := b.Render(0, Conversational)
	assert.Contains(t, out, "USER: hello")
	assert.Contains(t, out, "ASSISTANT: hi there")
}

func TestShortTermBufferRenderStructuredIncludesMetadata(t *testing.T) {
	b := NewShortTermBuffer(3)
	b.Push("user", "hello", Metadata{"turn": 1})

	out := b.Render(0, Structured)
	assert.Contains(t, out, "Turn 1 [USER]")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "metadata:")
}

func TestShortTermBufferRenderLastN(t *testing.T) {
	b := NewShortTermBuffer(5)
	b.Push("user", "one", nil)
	b.Push("user", "two", nil)
	b.Push("user", "three", nil)

	out := b.Render(1, Conversational)
	assert.Equal(t, "USER: three", out)
}

func TestShortTermBufferRenderEmpty(t *testing.T) {
	b := NewShortTermBuffer(3)
	assert.Equal(t, "", b.Render(0, Conversational))
}
