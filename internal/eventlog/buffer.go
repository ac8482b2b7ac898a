package eventlog

import (
	"strings"
	"sync"
)

// DefaultCapacity is the number of lines kept when no capacity is configured.
const DefaultCapacity = 500

// Buffer is a thread-safe circular buffer of formatted log lines.
// Appends beyond capacity overwrite the oldest line.
type Buffer struct {
	mu      sync.RWMutex
	entries []string
	head    int // next write position
	size    int
}

// NewBuffer creates a buffer holding at most capacity lines.
// A non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]string, capacity)}
}

// Append adds a line, evicting the oldest one when the buffer is full.
//
// Complexity: O(1) time, O(1) space
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capN := len(b.entries)
	b.entries[b.head] = line
	b.head = (b.head + 1) % capN
	if b.size < capN {
		b.size++
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}

	capN := len(b.entries)
	// head points at the oldest entry once the buffer has wrapped
	oldest := 0
	if b.size == capN {
		oldest = b.head
	}

	result := make([]string, b.size)
	for i := 0; i < b.size; i++ {
		result[i] = b.entries[(oldest+i)%capN]
	}
	return result
}

// ReadAll returns the buffered lines as one newline-terminated text blob in
// chronological order.
func (b *Buffer) ReadAll() string {
	lines := b.Lines()
	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}
