package abi

import (
	"encoding/binary"
	"fmt"
)

// DescriptorSize is the size of a descriptor buffer: two 32-bit words.
const DescriptorSize = 8

// ByteOrder is the byte order of the guest's linear memory. wasm32 is little
// endian, so on the guest this matches binary.NativeEndian.
var ByteOrder = binary.NativeEndian

// Handle is a (base address, length) pair inside linear memory.
// It is a calling convention, not a tracked object.
type Handle struct {
	Ptr uint32
	Len uint32
}

// IsZero reports whether h denotes no buffer at all.
func (h Handle) IsZero() bool {
	return h.Ptr == 0 && h.Len == 0
}

// End returns the first address past the range.
func (h Handle) End() uint64 {
	return uint64(h.Ptr) + uint64(h.Len)
}

// Overlaps reports whether two non-empty ranges share at least one byte.
func (h Handle) Overlaps(o Handle) bool {
	if h.Len == 0 || o.Len == 0 {
		return false
	}
	return uint64(h.Ptr) < o.End() && uint64(o.Ptr) < h.End()
}

func (h Handle) String() string {
	return fmt.Sprintf("%#x+%d", h.Ptr, h.Len)
}

// EncodeDescriptor renders h as a descriptor buffer: [ptr][len], each a
// 32-bit word in linear-memory byte order.
func EncodeDescriptor(h Handle) []byte {
	buf := make([]byte, DescriptorSize)
	ByteOrder.PutUint32(buf[0:4], h.Ptr)
	ByteOrder.PutUint32(buf[4:8], h.Len)
	return buf
}

// DecodeDescriptor parses the two words of a descriptor buffer.
func DecodeDescriptor(buf []byte) (Handle, error) {
	if len(buf) != DescriptorSize {
		return Handle{}, fmt.Errorf("%w: descriptor is %d bytes, want %d", ErrInvalidSize, len(buf), DescriptorSize)
	}
	return Handle{
		Ptr: ByteOrder.Uint32(buf[0:4]),
		Len: ByteOrder.Uint32(buf[4:8]),
	}, nil
}
