//go:build wasip1

package abi

import "unsafe"

// NativeMemory is the guest's own linear memory, addressed through raw
// pointers. It performs no bounds checks: every address is trusted.
type NativeMemory struct{}

// Read returns a view of [offset, offset+byteCount).
func (NativeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if byteCount == 0 {
		return []byte{}, true
	}
	//nolint:gosec // G103: valid unsafe.Pointer use for wasm linear memory access
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), byteCount), true
}

// Write copies v to offset.
func (NativeMemory) Write(offset uint32, v []byte) bool {
	if len(v) == 0 {
		return true
	}
	//nolint:gosec // G103: valid unsafe.Pointer use for wasm linear memory access
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), len(v))
	copy(dest, v)
	return true
}
