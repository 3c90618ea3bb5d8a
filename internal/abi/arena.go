package abi

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Alignment is the alignment of every address returned by an Arena.
const Alignment = 8

type span struct {
	off  uint32
	size uint32
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithLimit caps the bytes an Arena keeps live at once. Zero or negative
// values are ignored and the arena is bounded only by its window.
func WithLimit(limit int) ArenaOption {
	return func(a *Arena) {
		if limit > 0 {
			a.limit = limit
		}
	}
}

// Arena is a first-fit allocator over a fixed address window
// [base, base+size). It only does bookkeeping; the bytes themselves live in
// whatever Memory the window belongs to.
//
// Free space is kept as a sorted list of spans and neighbours are merged on
// release, so a freed range is available to the next request that fits.
type Arena struct {
	mu    sync.Mutex
	base  uint32
	size  uint32
	free  []span
	live  map[uint32]uint32
	inUse int
	limit int
}

// NewArena creates an arena over [base, base+size). base must be non-zero
// and aligned; size is rounded down to Alignment.
func NewArena(base, size uint32, opts ...ArenaOption) (*Arena, error) {
	if base == 0 || base%Alignment != 0 {
		return nil, fmt.Errorf("%w: arena base %#x must be non-zero and %d-byte aligned", ErrInvalidSize, base, Alignment)
	}
	size -= size % Alignment
	if size == 0 {
		return nil, fmt.Errorf("%w: arena window is empty", ErrInvalidSize)
	}
	if uint64(base)+uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: arena window %#x+%d exceeds 32-bit address space", ErrInvalidSize, base, size)
	}

	a := &Arena{
		base: base,
		size: size,
		live: make(map[uint32]uint32),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.free = []span{{off: 0, size: size}}
	return a, nil
}

// NewArenaMemory returns a SliceMemory of the given size and an arena that
// manages all of it except the first Alignment bytes, which stay reserved so
// that no live buffer starts at address 0.
func NewArenaMemory(size uint32, opts ...ArenaOption) (*SliceMemory, *Arena, error) {
	if size <= Alignment {
		return nil, nil, fmt.Errorf("%w: memory of %d bytes leaves no room for allocations", ErrInvalidSize, size)
	}
	mem := NewSliceMemory(size)
	arena, err := NewArena(Alignment, size-Alignment, opts...)
	if err != nil {
		return nil, nil, err
	}
	return mem, arena, nil
}

// Allocate reserves size bytes and returns the base address.
func (a *Arena) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if size > math.MaxUint32-(Alignment-1) {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}
	need := alignUp(size)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.limit > 0 && a.inUse+int(need) > a.limit {
		return 0, fmt.Errorf("%w: allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			ErrOutOfMemory, size, a.inUse, a.limit)
	}

	for i, s := range a.free {
		if s.size < need {
			continue
		}
		ptr := a.base + s.off
		if s.size == need {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = span{off: s.off + need, size: s.size - need}
		}
		a.live[ptr] = need
		a.inUse += int(need)
		return ptr, nil
	}

	return 0, fmt.Errorf("%w: no free span of %d bytes (in use: %d of %d)", ErrOutOfMemory, need, a.inUse, a.size)
}

// Deallocate releases the allocation at ptr. The arena uses its own record of
// the size; pointers outside the window or without a live record are
// ignored, which makes a double free a no-op.
func (a *Arena) Deallocate(ptr, _ uint32) {
	if !a.Contains(ptr) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	need, ok := a.live[ptr]
	if !ok {
		return
	}
	delete(a.live, ptr)
	a.inUse -= int(need)
	a.release(span{off: ptr - a.base, size: need})
}

// release inserts s into the free list, merging it with adjacent spans.
func (a *Arena) release(s span) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off > s.off })

	if i > 0 && a.free[i-1].off+a.free[i-1].size == s.off {
		i--
		a.free[i].size += s.size
	} else {
		a.free = append(a.free, span{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = s
	}

	if i+1 < len(a.free) && a.free[i].off+a.free[i].size == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
}

// Stats reports live allocations. BytesInUse counts aligned reservations.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{Allocations: len(a.live), BytesInUse: a.inUse, Limit: a.limit}
}

// Contains reports whether ptr lies inside the arena window.
func (a *Arena) Contains(ptr uint32) bool {
	return ptr >= a.base && uint64(ptr) < uint64(a.base)+uint64(a.size)
}

func alignUp(n uint32) uint32 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
