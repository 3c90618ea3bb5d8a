package abi

// Memory is a view of linear memory addressed by 32-bit offsets. The method
// set is a subset of wazero's api.Memory so a host-side module memory
// satisfies it directly.
//
// Read returns a view, not a copy: writes through either side are visible to
// the other until the range is released.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// SliceMemory is linear memory backed by a Go byte slice. Offsets are indexes
// into the slice, so address 0 is a real byte; strategies layered on top
// reserve it to keep 0 meaning "no buffer".
type SliceMemory struct {
	buf []byte
}

// NewSliceMemory returns a zeroed memory of size bytes.
func NewSliceMemory(size uint32) *SliceMemory {
	return &SliceMemory{buf: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.buf)) //nolint:gosec // G115: constructed from a uint32 size
}

// Read returns a view of [offset, offset+byteCount).
func (m *SliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(offset, byteCount) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

// Write copies v to offset.
func (m *SliceMemory) Write(offset uint32, v []byte) bool {
	if !m.hasSize(offset, lenU32(v)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *SliceMemory) hasSize(offset, byteCount uint32) bool {
	return uint64(offset)+uint64(byteCount) <= uint64(len(m.buf))
}

func lenU32(v []byte) uint32 {
	if uint64(len(v)) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(len(v)) //nolint:gosec // G115: checked above
}
