package hostfuncs

import (
	"bytes"
	"sync"
)

// DefaultMaxOutputSize bounds captured process or guest output (1MB).
const DefaultMaxOutputSize = 1 << 20

// DefaultMaxRequestSize bounds a single member request (1MB).
const DefaultMaxRequestSize = 1 << 20

// BoundedBuffer is an io.Writer that keeps at most limit bytes and silently
// drops the rest. Safe for concurrent writers, so one buffer can collect
// output from several goroutines.
type BoundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	truncated bool
	mu        sync.Mutex
}

// NewBoundedBuffer creates a buffer holding at most limit bytes.
// A non-positive limit uses DefaultMaxOutputSize.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputSize
	}
	return &BoundedBuffer{limit: limit}
}

// Write never returns a short write; excess data is discarded and marks
// the buffer truncated.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.truncated = true
		b.buffer.Write(p[:remaining])
		return len(p), nil
	}
	return b.buffer.Write(p)
}

// Truncated reports whether any data was dropped.
func (b *BoundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// String returns the retained contents.
func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

// Len returns the number of retained bytes.
func (b *BoundedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Len()
}

// Reset empties the buffer and clears the truncation flag.
func (b *BoundedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer.Reset()
	b.truncated = false
}
