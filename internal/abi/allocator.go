package abi

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrOutOfMemory is returned when a strategy cannot satisfy a request.
	ErrOutOfMemory = errors.New("abi: out of memory")

	// ErrInvalidSize is returned for sizes a strategy or codec cannot represent.
	ErrInvalidSize = errors.New("abi: invalid size")

	// ErrOutOfBounds is returned when a range does not fit in linear memory.
	ErrOutOfBounds = errors.New("abi: range out of bounds")
)

// Allocator is the byte allocation strategy backing the guest's exported
// allocate/deallocate pair.
//
// Allocate returns the base address of a buffer with capacity == size. The
// contents are unspecified. A size of 0 yields address 0 and creates no
// record. The returned range never overlaps another live allocation.
//
// Deallocate releases the buffer at ptr. The caller must pass the size used
// at allocation time; strategies account using their own record and ignore
// pointers they do not know.
type Allocator interface {
	Allocate(size uint32) (uint32, error)
	Deallocate(ptr, size uint32)
	Stats() Stats
}

// Adopter is implemented by strategies that can take ownership of an
// existing slice in place instead of copying it into a fresh buffer.
type Adopter interface {
	Adopt(buf []byte) (uint32, error)
}

// Stats is a snapshot of an allocator's live records.
type Stats struct {
	Allocations int
	BytesInUse  int
	Limit       int
}

func (s Stats) String() string {
	out := fmt.Sprintf("%d allocations, %s in use", s.Allocations, humanize.IBytes(uint64(s.BytesInUse))) //nolint:gosec // G115: never negative
	if s.Limit > 0 {
		out += fmt.Sprintf(" (limit %s)", humanize.IBytes(uint64(s.Limit))) //nolint:gosec // G115: never negative
	}
	return out
}

// Transfer hands data to the host: it places data in a live buffer owned by
// the allocator and returns its handle. From this point the host is
// responsible for calling Deallocate with the returned handle; the guest
// holds no reference that would reclaim it.
func Transfer(a Allocator, mem Memory, data []byte) (Handle, error) {
	if len(data) == 0 {
		return Handle{}, nil
	}
	size := uint32(len(data)) //nolint:gosec // G115: wasm32 buffers are bounded by 4 GiB
	if ad, ok := a.(Adopter); ok {
		ptr, err := ad.Adopt(data)
		if err != nil {
			return Handle{}, fmt.Errorf("adopt %d bytes: %w", size, err)
		}
		return Handle{Ptr: ptr, Len: size}, nil
	}

	ptr, err := a.Allocate(size)
	if err != nil {
		return Handle{}, fmt.Errorf("allocate %d bytes: %w", size, err)
	}
	if !mem.Write(ptr, data) {
		a.Deallocate(ptr, size)
		return Handle{}, fmt.Errorf("write %d bytes at %#x: %w", size, ptr, ErrOutOfBounds)
	}
	return Handle{Ptr: ptr, Len: size}, nil
}
