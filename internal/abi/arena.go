// Package abi manages guest linear memory shared with the capgate host and
// declares the host imports.
package abi

import (
	"fmt"
	"sync"
)

// MaxTotalAllocations bounds the bytes the guest keeps pinned for the host.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// Arena pins byte slices handed across the ABI so the garbage collector
// cannot reclaim them while the host still holds their address.
type Arena struct {
	live  map[uint32][]byte
	addr  func([]byte) uint32
	total int
	limit int
	mu    sync.Mutex
}

// NewArena creates an arena holding at most limit bytes. addr reports the
// linear-memory address of a slice's first byte.
func NewArena(limit int, addr func([]byte) uint32) *Arena {
	return &Arena{
		live:  make(map[uint32][]byte),
		addr:  addr,
		limit: limit,
	}
}

// Alloc reserves size bytes and returns their address. Zero-size requests
// return address 0 and pin nothing.
func (a *Arena) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.total+int(size) > a.limit {
		return 0, fmt.Errorf("abi: allocation of %d bytes exceeds limit (%d of %d in use)", size, a.total, a.limit)
	}

	buf := make([]byte, size)
	ptr := a.addr(buf)
	a.live[ptr] = buf
	a.total += int(size)
	return ptr, nil
}

// Free unpins the allocation at ptr. Unknown addresses are ignored, so a
// double free is harmless.
func (a *Arena) Free(ptr uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.live[ptr]
	if !ok {
		return
	}
	delete(a.live, ptr)
	a.total -= len(buf)
}

// Bytes returns the pinned slice at ptr.
func (a *Arena) Bytes(ptr uint32) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.live[ptr]
	return buf, ok
}

// Reset unpins everything.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.live)
	a.total = 0
}

// Stats returns the number of live allocations and the bytes they hold.
func (a *Arena) Stats() (count, bytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live), a.total
}
