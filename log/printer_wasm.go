//go:build wasip1

package log

import (
	"runtime"
	"unsafe"
)

// print is implemented by the host. It reads length bytes of UTF-8 at ptr.
//
//go:wasmimport env print
//nolint:revive // name fixed by the host ABI
func hostPrint(ptr, length uint32)

type hostPrinter struct{}

func (hostPrinter) Print(message string) {
	if len(message) == 0 {
		hostPrint(0, 0)
		return
	}
	//nolint:gosec // G103: string data lives in linear memory for the duration of the call
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.StringData(message))))
	hostPrint(ptr, uint32(len(message))) //nolint:gosec // G115: wasm32 lengths fit in 32 bits
	runtime.KeepAlive(message)
}

// HostPrinter returns the Printer backed by the env.print import.
func HostPrinter() Printer {
	return hostPrinter{}
}
