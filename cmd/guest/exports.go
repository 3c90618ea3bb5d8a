//go:build wasip1

package main

import (
	"log/slog"

	"github.com/Santiael/wasm-memory-interface/guest"
	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/log"
)

// unit is the process-wide guest. Its allocator lives as long as the module.
var unit = guest.New(newAllocator(), abi.NativeMemory{})

func init() {
	slog.SetDefault(slog.New(log.NewHandler()))
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	return unit.Allocate(size)
}

//go:wasmexport deallocate
func deallocate(ptr, size uint32) {
	unit.Deallocate(ptr, size)
}

//go:wasmexport read_bytes_from_memory
func readBytesFromMemory(ptr, length uint32) {
	unit.ReadBytesFromMemory(ptr, length)
}

//go:wasmexport read_number_from_memory
func readNumberFromMemory(ptr, length uint32) float64 {
	return unit.ReadNumberFromMemory(ptr, length)
}

//go:wasmexport set_hello_on_memory
func setHelloOnMemory() uint32 {
	return unit.SetHelloOnMemory()
}
