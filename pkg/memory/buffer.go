package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RenderStyle selects the output format for ShortTermBuffer.Render.
type RenderStyle int

const (
	// Conversational renders "ROLE: content" lines, one per message.
	Conversational RenderStyle = iota
	// Structured renders a per-turn header plus metadata for each message.
	Structured
)

// ShortTermBuffer is a bounded FIFO of recent conversation turns. It is
// independent of the Long-Term Store: pushing a message never touches the
// indices, and nothing here blocks on I/O, so it carries no mutex
// contention with the rest of the core.
//
// Not safe for use from more than one conversation's task chain at a time;
// the Memory Manager owns exactly one buffer per conversation.
type ShortTermBuffer struct {
	mu       sync.Mutex
	capacity int
	messages []Message
}

// NewShortTermBuffer creates a buffer holding at most capacity messages.
// A non-positive capacity is clamped to 1.
func NewShortTermBuffer(capacity int) *ShortTermBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ShortTermBuffer{capacity: capacity}
}

// Push appends a message, evicting the oldest entry (FIFO) if the buffer
// would exceed its capacity.
func (b *ShortTermBuffer) Push(role, content string, metadata Metadata) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})

	if overflow := len(b.messages) - b.capacity; overflow > 0 {
		b.messages = b.messages[overflow:]
	}
}

// Resize changes the buffer's capacity, truncating from the front (oldest
// first) if the buffer currently holds more than newCapacity messages.
func (b *ShortTermBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 {
		newCapacity = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.capacity = newCapacity
	if overflow := len(b.messages) - b.capacity; overflow > 0 {
		b.messages = b.messages[overflow:]
	}
}

// Clear removes all buffered messages without changing the capacity.
func (b *ShortTermBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

// Count returns the number of messages currently buffered.
func (b *ShortTermBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// All returns a copy of the buffered messages, oldest first.
func (b *ShortTermBuffer) All() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Render formats the last count messages (0 or negative means all of them)
// in the requested style.
func (b *ShortTermBuffer) Render(count int, style RenderStyle) string {
	b.mu.Lock()
	messages := make([]Message, len(b.messages))
	copy(messages, b.messages)
	b.mu.Unlock()

	if count > 0 && count < len(messages) {
		messages = messages[len(messages)-count:]
	}

	if len(messages) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch style {
		case Structured:
			fmt.Fprintf(&sb, "--- Turn %d [%s] (%s) ---\n%s",
				i+1, strings.ToUpper(m.Role), m.Timestamp.Format(time.RFC3339), m.Content)
			if len(m.Metadata) > 0 {
				fmt.Fprintf(&sb, "\nmetadata: %v", map[string]any(m.Metadata))
			}
		default:
			fmt.Fprintf(&sb, "%s: %s", strings.ToUpper(m.Role), m.Content)
		}
	}
	return sb.String()
}
