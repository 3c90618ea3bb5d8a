//go:build wasip1 && arena

package main

import (
	"unsafe"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
)

// arenaSize is the window reserved for host-visible buffers.
const arenaSize = 16 << 20

// region backs the arena. The package variable keeps it reachable for the
// life of the module so the collector never reclaims it.
var region = make([]byte, arenaSize)

func newAllocator() abi.Allocator {
	//nolint:gosec // G103: wasm32 heap addresses are linear memory offsets
	base := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(region))))
	arena, err := abi.NewArena(base, arenaSize)
	if err != nil {
		panic(err)
	}
	return arena
}
