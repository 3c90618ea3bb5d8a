//go:build wasip1

package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// DefaultMaxTotalAllocations is the default cap on bytes pinned at once.
// This prevents unbounded growth of the guest heap.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// Pinned allocates buffers on the Go heap and keeps a reference to each one
// until it is deallocated, so the garbage collector never reclaims memory
// the host still owns. The address handed out is the buffer's address in
// linear memory.
type Pinned struct {
	mu    sync.Mutex
	ptrs  map[uint32][]byte // ptr -> slice reference
	total int
	limit int
}

// PinnedOption configures a Pinned allocator.
type PinnedOption func(*Pinned)

// WithMaxTotalAllocations sets the pinned byte cap. Non-positive values are
// ignored.
func WithMaxTotalAllocations(limit int) PinnedOption {
	return func(p *Pinned) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// NewPinned creates a Pinned allocator.
func NewPinned(opts ...PinnedOption) *Pinned {
	p := &Pinned{
		ptrs:  make(map[uint32][]byte),
		limit: DefaultMaxTotalAllocations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocate reserves size bytes on the heap and pins them.
func (p *Pinned) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	p.mu.Lock()
	err := p.checkLimit(int(size))
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return p.pin(make([]byte, size))
}

// Adopt pins buf in place. The caller must not touch buf afterwards; it now
// belongs to whoever receives the returned address.
func (p *Pinned) Adopt(buf []byte) (uint32, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	return p.pin(buf[:len(buf):len(buf)])
}

func (p *Pinned) pin(buf []byte) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkLimit(len(buf)); err != nil {
		return 0, err
	}

	//nolint:gosec // G103: wasm32 heap addresses are linear memory offsets
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	p.ptrs[ptr] = buf
	p.total += len(buf)
	return ptr, nil
}

// checkLimit reports whether n more bytes fit under the cap. p.mu must be held.
func (p *Pinned) checkLimit(n int) error {
	if p.total+n > p.limit {
		return fmt.Errorf("%w: allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			ErrOutOfMemory, n, p.total, p.limit)
	}
	return nil
}

// Deallocate unpins the buffer at ptr so the collector may reclaim it.
// Accounting uses the stored slice length, not the caller's size.
func (p *Pinned) Deallocate(ptr, _ uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.ptrs[ptr]
	if !ok {
		return
	}
	delete(p.ptrs, ptr)
	p.total -= len(buf)
	if p.total < 0 {
		p.total = 0
	}
}

// Stats reports the pinned buffers.
func (p *Pinned) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Allocations: len(p.ptrs), BytesInUse: p.total, Limit: p.limit}
}
