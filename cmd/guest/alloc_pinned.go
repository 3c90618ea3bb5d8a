//go:build wasip1 && !arena

package main

import "github.com/Santiael/wasm-memory-interface/internal/abi"

func newAllocator() abi.Allocator {
	return abi.NewPinned()
}
